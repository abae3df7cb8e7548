// Package scoring computes the weighted multi-factor similarity of two profiles.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/internal/domain/types"
	"github.com/okian/affinity/pkg/logger"
)

// Factor names accepted in weight maps.
const (
	FactorCity        = "city"
	FactorProfession  = "profession"
	FactorAge         = "age"
	FactorExperience  = "experience"
	FactorDescription = "description"
)

// weightSumTolerance is how far weights may drift from summing to 1.
const weightSumTolerance = 0.01

// ErrInvalidWeights is returned when weights do not sum to 1.
var ErrInvalidWeights = errors.New("similarity weights must sum to 1")

// CityScorer scores two city names.
type CityScorer interface {
	Score(ctx context.Context, cityA, cityB string) (float64, error)
}

// DescriptionScorer scores two free-text descriptions.
type DescriptionScorer interface {
	Score(ctx context.Context, a, b string) float64
}

// Scorer computes the similarity breakdown of two profiles.
type Scorer interface {
	Score(ctx context.Context, a, b model.Profile) (types.Breakdown, error)
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithWeights replaces the factor weights when they sum to 1.
func WithWeights(w types.Weights) Option {
	return func(a *Aggregator) {
		if ValidateWeights(w) == nil {
			a.weights = w
		}
	}
}

// WithWeightsFromConfig reads weights keyed by factor name. Missing factors
// keep their default; the result is applied only if it sums to 1.
func WithWeightsFromConfig(weights map[string]float64) Option {
	return func(a *Aggregator) {
		if len(weights) == 0 {
			return
		}
		WithWeights(WeightsFromMap(weights, a.weights))(a)
	}
}

// WithClock sets the time source used for ages.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets a custom logger for the aggregator.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WeightsFromMap overlays named weights on base.
func WeightsFromMap(m map[string]float64, base types.Weights) types.Weights {
	w := base
	for k, v := range m {
		switch k {
		case FactorCity:
			w.City = v
		case FactorProfession:
			w.Profession = v
		case FactorAge:
			w.Age = v
		case FactorExperience:
			w.Experience = v
		case FactorDescription:
			w.Description = v
		}
	}
	return w
}

// ValidateWeights checks that weights are non-negative and sum to 1.
func ValidateWeights(w types.Weights) error {
	for _, v := range []float64{w.City, w.Profession, w.Age, w.Experience, w.Description} {
		if v < 0 {
			return fmt.Errorf("%w: negative weight %v", ErrInvalidWeights, v)
		}
	}
	if math.Abs(w.Sum()-1) > weightSumTolerance {
		return fmt.Errorf("%w: got %.3f", ErrInvalidWeights, w.Sum())
	}
	return nil
}

// Aggregator combines the five factor scores into one weighted similarity.
type Aggregator struct {
	city        CityScorer
	description DescriptionScorer
	weights     types.Weights
	now         func() time.Time
	logger      logger.Logger
}

// NewAggregator creates an Aggregator with the default weights.
func NewAggregator(city CityScorer, description DescriptionScorer, opts ...Option) *Aggregator {
	a := &Aggregator{
		city:        city,
		description: description,
		weights:     types.DefaultWeights(),
		now:         time.Now,
		logger:      logger.Get().Named("scoring"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Weights returns the weights in use.
func (a *Aggregator) Weights() types.Weights { return a.weights }

// Score returns every factor score and their weighted total. A city that
// cannot be found scores 0; any other city failure fails the pair.
// Pairs scored that way show up as
// affinity_place_resolutions_total{source="not_found"}.
func (a *Aggregator) Score(ctx context.Context, x, y model.Profile) (types.Breakdown, error) {
	city, err := a.city.Score(ctx, x.CityName, y.CityName)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			return types.Breakdown{}, fmt.Errorf("city similarity %s/%s: %w", x.ID, y.ID, err)
		}
		a.logger.Warn(ctx, "city not resolvable, scoring 0",
			logger.String("city_a", x.CityName),
			logger.String("city_b", y.CityName),
		)
		city = 0
	}

	b := types.Breakdown{
		City:        city,
		Profession:  ProfessionSimilarity(x.ProfessionLabel, y.ProfessionLabel),
		Age:         AgeSimilarity(x.BirthDate, y.BirthDate, a.now()),
		Experience:  ExperienceSimilarity(x.ExperienceYears, y.ExperienceYears),
		Description: a.description.Score(ctx, x.Description, y.Description),
	}
	b.Total = a.weights.Apply(b)
	return b, nil
}
