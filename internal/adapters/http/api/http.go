// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/internal/domain/text"
	"github.com/okian/affinity/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RecommendationDependencies
	PlaceDependencies
	SimilarityDependencies
}

// Entry mirrors the read shape returned by ranking queries.
type Entry = types.Entry

// RecommendationDependencies serves live and stored rankings.
type RecommendationDependencies interface {
	ComputeRanking(ctx context.Context, targetID string) (types.Ranking, error)
	RefreshRecommendations(ctx context.Context, targetID string) (types.Ranking, error)
	StoredRecommendations(ctx context.Context, targetID string, limit int) ([]Entry, error)
}

// PlaceDependencies resolves place names.
type PlaceDependencies interface {
	ResolvePlace(ctx context.Context, name string) (model.Place, error)
}

// SimilarityDependencies scores ad-hoc pairs and texts.
type SimilarityDependencies interface {
	PairSimilarity(ctx context.Context, a, b model.Profile) (types.Breakdown, error)
	DescriptionSimilarity(ctx context.Context, a, b string) (text.Comparison, error)
	PrepareText(ctx context.Context, s string) (text.Prepared, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler          *HealthHandler
	statsHandler           *StatsHandler
	recommendationsHandler *RecommendationsHandler
	placesHandler          *PlacesHandler
	similarityHandler      *SimilarityHandler
}

// NewServer creates a new API server with all handlers. checks are run by
// /healthz and may be nil.
func NewServer(deps Dependencies, statsProvider StatsProvider, checks map[string]HealthCheck) *Server {
	return &Server{
		healthHandler:          NewHealthHandler(checks),
		statsHandler:           NewStatsHandler(statsProvider),
		recommendationsHandler: NewRecommendationsHandler(deps),
		placesHandler:          NewPlacesHandler(deps),
		similarityHandler:      NewSimilarityHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /recommendations/{id}",
		MetricsMiddleware(s.recommendationsHandler.HandleLive, "recommendations"))
	mux.HandleFunc("POST /recommendations/{id}/refresh",
		MetricsMiddleware(s.recommendationsHandler.HandleRefresh, "recommendations_refresh"))
	mux.HandleFunc("GET /recommendations/{id}/stored",
		MetricsMiddleware(s.recommendationsHandler.HandleStored, "recommendations_stored"))

	mux.HandleFunc("GET /places", MetricsMiddleware(s.placesHandler.HandleResolve, "places"))

	mux.HandleFunc("POST /similarity", MetricsMiddleware(s.similarityHandler.HandlePair, "similarity"))
	mux.HandleFunc("GET /similarity/profession",
		MetricsMiddleware(s.similarityHandler.HandleProfession, "similarity_profession"))
	mux.HandleFunc("GET /similarity/age", MetricsMiddleware(s.similarityHandler.HandleAge, "similarity_age"))
	mux.HandleFunc("GET /similarity/experience",
		MetricsMiddleware(s.similarityHandler.HandleExperience, "similarity_experience"))
	mux.HandleFunc("POST /similarity/description",
		MetricsMiddleware(s.similarityHandler.HandleDescription, "similarity_description"))
	mux.HandleFunc("POST /text/prepare", MetricsMiddleware(s.similarityHandler.HandlePrepare, "text_prepare"))
}
