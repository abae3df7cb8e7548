// Package worker runs the fixed pool that scores ranking candidates.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/affinity/internal/adapters/mq/queue"
	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/internal/domain/types"
	"github.com/okian/affinity/pkg/logger"
	"github.com/okian/affinity/pkg/metrics"
)

// DefaultWorkerCount bounds how many candidates are scored at once.
const DefaultWorkerCount = 10

// Scorer computes the similarity breakdown of a target and a candidate.
type Scorer interface {
	Score(ctx context.Context, target, candidate model.Profile) (types.Breakdown, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Next(ctx context.Context) (queue.Job, bool)
}

// Result is the outcome of scoring one job.
type Result struct {
	Index     int
	Candidate model.Profile
	Breakdown types.Breakdown
	Err       error
}

// Collector receives results. Collect must not block for long; it is
// called from worker goroutines.
type Collector interface {
	Collect(r Result)
}

// Worker processes jobs until the queue is exhausted or ctx is done.
type Worker interface {
	Run(ctx context.Context)
}

// InMemoryWorker scores jobs for one target profile.
type InMemoryWorker struct {
	queue     Queue
	scorer    Scorer
	collector Collector
	target    model.Profile
	name      string

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, scorer Scorer, collector Collector, target model.Profile, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		scorer:    scorer,
		collector: collector,
		target:    target,
		name:      "worker",
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run takes jobs until none are left. Cancelling ctx stops the worker from
// taking new jobs; a job already taken runs to completion on a context
// that ignores the cancellation.
func (w *InMemoryWorker) Run(ctx context.Context) {
	metrics.AddFanOutWorkers(1)
	defer metrics.AddFanOutWorkers(-1)

	detached := context.WithoutCancel(ctx)
	for {
		j, ok := w.queue.Next(ctx)
		if !ok {
			return
		}
		w.collector.Collect(w.process(detached, j))
	}
}

func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) Result { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	metrics.IncFanOutInFlight()
	defer metrics.DecFanOutInFlight()

	start := time.Now()
	b, err := w.scorer.Score(ctx, w.target, j.Candidate)
	metrics.RecordPairScoring(float64(time.Since(start).Microseconds()) / 1000)

	if err != nil {
		metrics.RecordPairScoringError()
		w.logger.Warn(ctx, "candidate scoring failed",
			logger.String("target", w.target.ID),
			logger.String("candidate", j.Candidate.ID),
			logger.Error(err),
		)
		return Result{Index: j.Index, Candidate: j.Candidate, Err: fmt.Errorf("score %s: %w", j.Candidate.ID, err)}
	}
	return Result{Index: j.Index, Candidate: j.Candidate, Breakdown: b}
}

// Pool runs a fixed number of workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	wg      sync.WaitGroup
	done    chan struct{}
	once    sync.Once
}

// NewPool creates workerCount workers scoring candidates against target.
func NewPool(workerCount int, q Queue, scorer Scorer, collector Collector, target model.Profile, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = DefaultWorkerCount
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		done:    make(chan struct{}),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, scorer, collector, target, wopts...)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers. Done is closed once every worker has returned.
func (p *Pool) Start(ctx context.Context) {
	p.once.Do(func() {
		p.wg.Add(len(p.workers))
		for _, w := range p.workers {
			go func(w *InMemoryWorker) {
				defer p.wg.Done()
				w.Run(ctx)
			}(w)
		}
		go func() {
			p.wg.Wait()
			close(p.done)
		}()
	})
}

// Done is closed when every worker has stopped.
func (p *Pool) Done() <-chan struct{} { return p.done }

// Wait blocks until every worker has stopped.
func (p *Pool) Wait() { <-p.done }
