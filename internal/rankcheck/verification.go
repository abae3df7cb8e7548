package rankcheck

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/affinity/pkg/logger"
)

// ErrVerification is returned when at least one ranking is malformed.
var ErrVerification = errors.New("ranking verification failed")

// verifyRanking checks the invariants of one live ranking: at most topK
// entries, sequential ranks, scores in [0,1] and non-increasing, and the
// target never recommended to itself.
func verifyRanking(profileID string, r Ranking, topK int) error {
	if r.TargetID != profileID {
		return fmt.Errorf("target %q does not match requested profile %q", r.TargetID, profileID)
	}
	if topK > 0 && len(r.Entries) > topK {
		return fmt.Errorf("%d entries exceed top %d", len(r.Entries), topK)
	}
	seen := make(map[string]struct{}, len(r.Entries))
	for i, e := range r.Entries {
		if e.Rank != i+1 {
			return fmt.Errorf("entry %d has rank %d", i, e.Rank)
		}
		if e.ProfileID == profileID {
			return fmt.Errorf("profile %s is recommended to itself", profileID)
		}
		if _, dup := seen[e.ProfileID]; dup {
			return fmt.Errorf("profile %s appears twice", e.ProfileID)
		}
		seen[e.ProfileID] = struct{}{}
		if e.Similarity < 0 || e.Similarity > 1 {
			return fmt.Errorf("entry %d similarity %.4f outside [0,1]", i, e.Similarity)
		}
		if i > 0 && e.Similarity > r.Entries[i-1].Similarity {
			return fmt.Errorf("entry %d (%.4f) scores above entry %d (%.4f)",
				i, e.Similarity, i-1, r.Entries[i-1].Similarity)
		}
	}
	return nil
}

// verifyResults checks every retrieved ranking and fails when any is invalid.
func verifyResults(ctx context.Context, config *Config, results []result, stats *Stats) error {
	log := logger.Get()
	log.Info(ctx, "verifying rankings")

	var invalid int
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		if err := verifyRanking(res.ProfileID, res.Ranking, config.TopK); err != nil {
			invalid++
			log.Warn(ctx, "invalid ranking", logger.String("profileID", res.ProfileID), logger.Error(err))
			continue
		}
		if config.Verbose {
			displayRanking(ctx, res)
		}
	}
	stats.RankingsInvalid = invalid

	if invalid > 0 {
		return fmt.Errorf("%w: %d of %d rankings invalid", ErrVerification, invalid, len(results))
	}
	if stats.RankingsRetrieved == 0 {
		return fmt.Errorf("%w: no rankings retrieved", ErrVerification)
	}
	log.Info(ctx, "result verification completed")
	return nil
}

func displayRanking(ctx context.Context, res result) {
	fields := []logger.Field{
		logger.String("profileID", res.ProfileID),
		logger.Int("entries", len(res.Ranking.Entries)),
		logger.Int("skipped", res.Ranking.Skipped),
	}
	if len(res.Ranking.Entries) > 0 {
		top := res.Ranking.Entries[0]
		fields = append(fields, logger.String("top", top.ProfileID), logger.Float64("topSimilarity", top.Similarity))
	}
	logger.Get().Info(ctx, "ranking", fields...)
}
