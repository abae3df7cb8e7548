package rankcheck

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/pkg/logger"
)

// result is one profile's ranking or the error fetching it.
type result struct {
	ProfileID string
	Ranking   Ranking
	Err       error
}

// retrieveRankings fetches the live ranking of every profile with at most
// config.Workers requests in flight. Failed requests are reported in the
// results, never as the function error.
func retrieveRankings(ctx context.Context, config *Config, profiles []model.Profile, stats *Stats) ([]result, error) {
	log := logger.Get()
	log.Info(ctx, "retrieving rankings",
		logger.Int("profiles", len(profiles)),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	results := make([]result, len(profiles))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(config.Workers, 1))
	for i, p := range profiles {
		g.Go(func() error {
			var r Ranking
			err := client.GetJSON(gctx, fmt.Sprintf("%s/recommendations/%s", config.BaseURL, p.ID), &r)
			results[i] = result{ProfileID: p.ID, Ranking: r, Err: err}
			if err != nil {
				failed.Add(1)
				if config.Verbose {
					log.Warn(gctx, "failed to get ranking", logger.String("profileID", p.ID), logger.Error(err))
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled during ranking retrieval: %w", err)
	}

	stats.RankingsFailed = int(failed.Load())
	stats.RankingsRetrieved = len(results) - stats.RankingsFailed
	log.Info(ctx, "ranking retrieval completed",
		logger.Int("retrieved", stats.RankingsRetrieved),
		logger.Int("failed", stats.RankingsFailed))
	return results, nil
}
