package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/affinity/internal/adapters/mq/queue"
	"github.com/okian/affinity/internal/adapters/mq/worker"
	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/internal/domain/types"
	"github.com/okian/affinity/pkg/logger"
	"github.com/okian/affinity/pkg/metrics"
)

// DefaultTopK is how many entries a live ranking returns.
const DefaultTopK = 10

// Ranking is the ordered outcome of scoring candidates against one target.
type Ranking = types.Ranking

// Scheduler scores candidates with a fixed worker pool.
type Scheduler struct {
	scorer  worker.Scorer
	workers int
	topK    int
	logger  logger.Logger
}

// NewScheduler creates a Scheduler running workers concurrent scorings and
// keeping the best topK entries.
func NewScheduler(scorer worker.Scorer, workers, topK int, log logger.Logger) *Scheduler {
	if workers < 1 {
		workers = worker.DefaultWorkerCount
	}
	if topK < 1 {
		topK = DefaultTopK
	}
	if log == nil {
		log = logger.Get().Named("fanout")
	}
	return &Scheduler{scorer: scorer, workers: workers, topK: topK, logger: log}
}

// Workers returns the admission limit.
func (s *Scheduler) Workers() int { return s.workers }

// TopK returns the live ranking size.
func (s *Scheduler) TopK() int { return s.topK }

// collector gathers results from worker goroutines.
type collector struct {
	mu      sync.Mutex
	results []worker.Result
}

func (c *collector) Collect(r worker.Result) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
}

// Rank scores every candidate and returns the best topK, best first.
func (s *Scheduler) Rank(ctx context.Context, target model.Profile, candidates []model.Profile) (Ranking, error) {
	start := time.Now()
	r, err := s.ScoreAll(ctx, target, candidates)
	if len(r.Entries) > s.topK {
		r.Entries = r.Entries[:s.topK]
	}

	outcome := "ok"
	switch {
	case ctx.Err() != nil:
		outcome = "cancelled"
	case err != nil:
		outcome = "error"
	case r.Skipped > 0:
		outcome = "partial"
	}
	metrics.RecordRanking(outcome, float64(time.Since(start).Microseconds())/1000)
	return r, err
}

// ScoreAll scores every candidate and returns all of them, best first.
// Ties keep input order. Failed candidates are skipped and counted; the first
// failure is returned only when no candidate could be scored. When ctx is
// cancelled the candidates finished so far are returned with the context error.
func (s *Scheduler) ScoreAll(ctx context.Context, target model.Profile, candidates []model.Profile) (Ranking, error) {
	out := Ranking{TargetID: target.ID, Entries: []types.Entry{}}
	if len(candidates) == 0 {
		return out, nil
	}

	q := queue.NewInMemoryQueue(queue.WithCapacity(len(candidates)))
	for i, c := range candidates {
		if !q.Enqueue(ctx, queue.Job{Index: i, Candidate: c}) {
			break
		}
	}
	_ = q.Close()

	col := &collector{results: make([]worker.Result, 0, len(candidates))}
	pool := worker.NewPool(min(s.workers, len(candidates)), q, s.scorer, col, target)
	pool.Start(ctx)
	pool.Wait()
	if dropped := q.Discard(); dropped > 0 {
		s.logger.Debug(ctx, "ranking stopped before every candidate was scored",
			logger.String("target", target.ID),
			logger.Int("dropped", dropped),
		)
	}

	results := col.results
	slices.SortFunc(results, func(a, b worker.Result) int { return cmp.Compare(a.Index, b.Index) })

	var firstErr error
	ok := make([]worker.Result, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			out.Skipped++
			if firstErr == nil {
				firstErr = r.Err
			}
			continue
		}
		ok = append(ok, r)
	}
	slices.SortStableFunc(ok, func(a, b worker.Result) int {
		return cmp.Compare(b.Breakdown.Total, a.Breakdown.Total)
	})

	ids := make([]string, len(ok))
	sims := make([]float64, len(ok))
	for i, r := range ok {
		ids[i] = r.Candidate.ID
		sims[i] = r.Breakdown.Total
	}
	out.Entries = types.EntriesFrom(ids, sims)
	out.Scored = len(ok)

	if out.Skipped > 0 {
		s.logger.Warn(ctx, "candidates skipped during ranking",
			logger.String("target", target.ID),
			logger.Int("skipped", out.Skipped),
			logger.Int("scored", out.Scored),
		)
	}

	if err := ctx.Err(); err != nil {
		return out, fmt.Errorf("ranking %s: %w", target.ID, err)
	}
	if len(ok) == 0 && firstErr != nil {
		return out, fmt.Errorf("ranking %s: every candidate failed: %w", target.ID, firstErr)
	}
	return out, nil
}
