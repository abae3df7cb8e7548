// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/internal/domain/scoring"
	"github.com/okian/affinity/internal/domain/text"
	"github.com/okian/affinity/internal/domain/types"
	"github.com/okian/affinity/pkg/logger"
	"github.com/okian/affinity/pkg/metrics"
)

// DefaultStoredLimit is how many stored recommendations are returned when
// the caller does not ask for a number.
const DefaultStoredLimit = 5

var (
	// ErrNotStarted is returned by operations called before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrMissingDependency is returned by Start when a collaborator is not set.
	ErrMissingDependency = errors.New("service dependency not configured")
)

// PlaceCounter reports how many places are stored.
type PlaceCounter interface {
	CountPlaces(ctx context.Context) (int, error)
}

// ProfileStore reads profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (model.Profile, error)
	ListProfilesExcluding(ctx context.Context, id string) ([]model.Profile, error)
}

// RecommendationStore keeps the last persisted ranking of each profile.
type RecommendationStore interface {
	ReplaceForSource(ctx context.Context, sourceID string, rows []model.StoredRecommendation) error
	TopForSource(ctx context.Context, sourceID string, limit int) ([]model.StoredRecommendation, error)
}

// PlaceResolver resolves a place name to a stored place.
type PlaceResolver interface {
	Resolve(ctx context.Context, name string) (model.Place, error)
}

// TextAnalyzer scores descriptions and exposes their preparation.
type TextAnalyzer interface {
	ScoreDetailed(ctx context.Context, a, b string) (float64, text.Prepared, text.Prepared)
}

// Service implements the API dependencies for the recommendation system.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	profiles        ProfileStore
	recommendations RecommendationStore
	places          PlaceResolver
	placeCounter    PlaceCounter
	scorer          scoring.Scorer
	text            TextAnalyzer
	preparer        text.TextPreparer

	// Configuration
	workerCount int
	topK        int
	storedLimit int
	newID       func() string

	// State
	started   bool
	scheduler *Scheduler
	refreshes singleflight.Group

	rankingCount   atomic.Int64
	refreshCount   atomic.Int64
	lastRefreshRow atomic.Int64

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets how many candidates are scored at once.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithTopK sets the size of a live ranking.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithStoredLimit sets the default number of stored recommendations returned.
func WithStoredLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.storedLimit = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProfileStore sets the profile source.
func WithProfileStore(p ProfileStore) Option {
	return func(s *Service) { s.profiles = p }
}

// WithRecommendationStore sets where refreshed rankings are persisted.
func WithRecommendationStore(r RecommendationStore) Option {
	return func(s *Service) { s.recommendations = r }
}

// WithResolver sets the place resolver.
func WithResolver(r PlaceResolver) Option {
	return func(s *Service) { s.places = r }
}

// WithPlaceCounter sets where GetStats reads the stored place count.
func WithPlaceCounter(c PlaceCounter) Option {
	return func(s *Service) { s.placeCounter = c }
}

// WithScorer sets the pair scorer.
func WithScorer(sc scoring.Scorer) Option {
	return func(s *Service) { s.scorer = sc }
}

// WithTextAnalyzer sets the description scorer used by the text probes.
func WithTextAnalyzer(t TextAnalyzer) Option {
	return func(s *Service) { s.text = t }
}

// WithTextPreparer sets the preparer used by the text probe.
func WithTextPreparer(p text.TextPreparer) Option {
	return func(s *Service) { s.preparer = p }
}

// WithIDGenerator sets how recommendation row IDs are made.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) {
		if f != nil {
			s.newID = f
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: 10,
		topK:        DefaultTopK,
		storedLimit: DefaultStoredLimit,
		newID:       uuid.NewString,
		logger:      nil, // Will be replaced when service starts
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start checks the collaborators and builds the fan-out scheduler.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	var missing []string
	if s.profiles == nil {
		missing = append(missing, "profiles")
	}
	if s.recommendations == nil {
		missing = append(missing, "recommendations")
	}
	if s.places == nil {
		missing = append(missing, "places")
	}
	if s.scorer == nil {
		missing = append(missing, "scorer")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingDependency, strings.Join(missing, ", "))
	}

	s.scheduler = NewScheduler(s.scorer, s.workerCount, s.topK, s.logger.Named("fanout"))
	s.started = true
	s.logger.Info(ctx, "recommendation service started",
		logger.Int("workers", s.workerCount),
		logger.Int("topK", s.topK),
		logger.Int("storedLimit", s.storedLimit),
	)
	return nil
}

// Stop marks the service stopped. Calls already running finish.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "recommendation service stopped")
}

func (s *Service) running() (*Scheduler, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.scheduler, nil
}

func (s *Service) targetAndCandidates(ctx context.Context, id string) (model.Profile, []model.Profile, error) {
	if strings.TrimSpace(id) == "" {
		return model.Profile{}, nil, fmt.Errorf("%w: empty profile id", model.ErrInvalidInput)
	}
	target, err := s.profiles.GetProfile(ctx, id)
	if err != nil {
		return model.Profile{}, nil, fmt.Errorf("load profile %s: %w", id, err)
	}
	candidates, err := s.profiles.ListProfilesExcluding(ctx, id)
	if err != nil {
		return model.Profile{}, nil, fmt.Errorf("load candidates for %s: %w", id, err)
	}
	return target, candidates, nil
}

// ComputeRanking returns the live top-K most similar profiles to targetID.
// An unknown id yields model.ErrNotFound.
func (s *Service) ComputeRanking(ctx context.Context, targetID string) (Ranking, error) {
	sched, err := s.running()
	if err != nil {
		return Ranking{}, err
	}
	target, candidates, err := s.targetAndCandidates(ctx, targetID)
	if err != nil {
		return Ranking{}, err
	}

	s.rankingCount.Add(1)
	return sched.Rank(ctx, target, candidates)
}

// RefreshRecommendations scores every candidate and replaces the stored
// recommendations of targetID with the result. Concurrent refreshes of one
// profile share a single computation. Once started, the computation runs to
// completion and persists even if the caller that started it goes away; a
// caller whose ctx ends stops waiting and gets the ctx error.
func (s *Service) RefreshRecommendations(ctx context.Context, targetID string) (Ranking, error) {
	sched, err := s.running()
	if err != nil {
		return Ranking{}, err
	}
	if err := ctx.Err(); err != nil {
		return Ranking{}, fmt.Errorf("refresh %s: %w", targetID, err)
	}

	// The shared call must not die with whichever caller started it.
	shared := context.WithoutCancel(ctx)
	ch := s.refreshes.DoChan(targetID, func() (interface{}, error) {
		return s.refresh(shared, sched, targetID)
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.logger.Debug(ctx, "refresh joined in-flight computation", logger.String("profile", targetID))
		}
		if res.Err != nil {
			return Ranking{}, res.Err
		}
		return res.Val.(Ranking), nil
	case <-ctx.Done():
		s.logger.Info(ctx, "refresh caller left; computation continues", logger.String("profile", targetID))
		return Ranking{}, fmt.Errorf("refresh %s: %w", targetID, ctx.Err())
	}
}

func (s *Service) refresh(ctx context.Context, sched *Scheduler, targetID string) (Ranking, error) {
	target, candidates, err := s.targetAndCandidates(ctx, targetID)
	if err != nil {
		return Ranking{}, err
	}

	ranking, err := sched.ScoreAll(ctx, target, candidates)
	if err != nil {
		return Ranking{}, err
	}

	rows := make([]model.StoredRecommendation, 0, len(ranking.Entries))
	for _, e := range ranking.Entries {
		rows = append(rows, model.StoredRecommendation{
			ID:              s.newID(),
			SourceProfileID: target.ID,
			TargetProfileID: e.ProfileID,
			Similarity:      e.Similarity,
		})
	}
	if err := s.recommendations.ReplaceForSource(ctx, target.ID, rows); err != nil {
		return Ranking{}, fmt.Errorf("persist recommendations for %s: %w", target.ID, err)
	}

	metrics.RecordRecommendationsPersisted(len(rows))
	s.refreshCount.Add(1)
	s.lastRefreshRow.Store(int64(len(rows)))
	s.logger.Info(ctx, "recommendations refreshed",
		logger.String("profile", target.ID),
		logger.Int("rows", len(rows)),
		logger.Int("skipped", ranking.Skipped),
	)
	return ranking, nil
}

// StoredRecommendations returns up to limit persisted recommendations of
// targetID, best first. A non-positive limit uses the configured default.
func (s *Service) StoredRecommendations(ctx context.Context, targetID string, limit int) ([]types.Entry, error) {
	if _, err := s.running(); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = s.storedLimit
	}
	rows, err := s.recommendations.TopForSource(ctx, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("stored recommendations for %s: %w", targetID, err)
	}

	entries := make([]types.Entry, len(rows))
	for i, r := range rows {
		entries[i] = types.Entry{Rank: i + 1, ProfileID: r.TargetProfileID, Similarity: r.Similarity}
	}
	return entries, nil
}

// ResolvePlace resolves a place name, creating it on first sight.
func (s *Service) ResolvePlace(ctx context.Context, name string) (model.Place, error) {
	if _, err := s.running(); err != nil {
		return model.Place{}, err
	}
	return s.places.Resolve(ctx, name)
}

// PairSimilarity scores two profiles that need not be stored.
func (s *Service) PairSimilarity(ctx context.Context, a, b model.Profile) (types.Breakdown, error) {
	if _, err := s.running(); err != nil {
		return types.Breakdown{}, err
	}
	return s.scorer.Score(ctx, a, b)
}

// DescriptionSimilarity scores two descriptions and reports how each was prepared.
func (s *Service) DescriptionSimilarity(ctx context.Context, a, b string) (text.Comparison, error) {
	if _, err := s.running(); err != nil {
		return text.Comparison{}, err
	}
	if s.text == nil {
		return text.Comparison{}, fmt.Errorf("%w: text analyzer", ErrMissingDependency)
	}
	score, pa, pb := s.text.ScoreDetailed(ctx, a, b)
	return text.Comparison{Similarity: score, A: pa, B: pb}, nil
}

// PrepareText detects and, if needed, translates s to English.
func (s *Service) PrepareText(ctx context.Context, in string) (text.Prepared, error) {
	if _, err := s.running(); err != nil {
		return text.Prepared{}, err
	}
	if s.preparer == nil {
		return text.Prepared{}, fmt.Errorf("%w: text preparer", ErrMissingDependency)
	}
	return s.preparer.Prepare(ctx, in), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         started,
		"workerCount":     s.workerCount,
		"topK":            s.topK,
		"storedLimit":     s.storedLimit,
		"rankings":        s.rankingCount.Load(),
		"refreshes":       s.refreshCount.Load(),
		"lastRefreshRows": s.lastRefreshRow.Load(),
	}

	if w, ok := s.scorer.(interface{ Weights() types.Weights }); ok {
		stats["weights"] = w.Weights()
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if c, ok := s.profiles.(interface {
		CountProfiles(context.Context) (int, error)
	}); ok {
		if n, err := c.CountProfiles(ctx); err == nil {
			stats["totalProfiles"] = n
		}
	}
	if s.placeCounter != nil {
		if n, err := s.placeCounter.CountPlaces(ctx); err == nil {
			stats["totalPlaces"] = n
		}
	}
	return stats
}
