// Package text prepares free-text descriptions and scores their similarity.
package text

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/okian/affinity/pkg/logger"
	"github.com/okian/affinity/pkg/metrics"
)

const (
	minTextLength = 3
	english       = "en"
)

// Status is the outcome of preparing a text.
type Status string

// Preparation outcomes. Only StatusReady and StatusTranslated carry text.
const (
	StatusReady             Status = "ready"
	StatusTranslated        Status = "translated"
	StatusTooShort          Status = "too_short"
	StatusUndetected        Status = "undetected"
	StatusUntranslatable    Status = "untranslatable"
	StatusDependencyFailure Status = "dependency_failure"
)

// Prepared is a text normalized to English, or empty with the reason why.
type Prepared struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	Status   Status `json:"status"`
}

// Usable reports whether the prepared text can be compared.
func (p Prepared) Usable() bool { return p.Text != "" }

// Detector identifies the dominant language of a text as an ISO 639-1 code.
type Detector interface {
	Detect(ctx context.Context, text string) (string, error)
}

// Translator translates text into the target ISO 639-1 language.
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// Preparer normalizes descriptions into English.
type Preparer struct {
	detector   Detector
	translator Translator
	logger     logger.Logger
}

// NewPreparer creates a Preparer.
func NewPreparer(detector Detector, translator Translator, opts ...PreparerOption) *Preparer {
	p := &Preparer{
		detector:   detector,
		translator: translator,
		logger:     logger.Get().Named("text"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PreparerOption applies a configuration option to the Preparer.
type PreparerOption func(*Preparer)

// WithLogger sets a custom logger for the preparer.
func WithLogger(l logger.Logger) PreparerOption {
	return func(p *Preparer) {
		if l != nil {
			p.logger = l
		}
	}
}

// Prepare never returns an error; failures yield empty text with a status
// that tells a degraded input apart from a dependency outage.
func (p *Preparer) Prepare(ctx context.Context, s string) Prepared {
	out := p.prepare(ctx, s)
	metrics.RecordTextPreparation(string(out.Status))
	return out
}

func (p *Preparer) prepare(ctx context.Context, s string) Prepared {
	trimmed := strings.TrimSpace(s)
	if utf8.RuneCountInString(trimmed) < minTextLength {
		return Prepared{Status: StatusTooShort}
	}

	lang, err := p.detector.Detect(ctx, trimmed)
	if err != nil {
		if errors.Is(err, ErrUndetected) {
			return Prepared{Status: StatusUndetected}
		}
		p.logger.Warn(ctx, "language detection failed", logger.Error(err))
		return Prepared{Status: StatusDependencyFailure}
	}
	if lang == english {
		return Prepared{Text: trimmed, Language: lang, Status: StatusReady}
	}

	translated, err := p.translator.Translate(ctx, trimmed, english)
	switch {
	case err == nil && strings.TrimSpace(translated) != "":
		return Prepared{Text: strings.TrimSpace(translated), Language: lang, Status: StatusTranslated}
	case err == nil, errors.Is(err, ErrUntranslatable):
		p.logger.Debug(ctx, "text untranslatable", logger.String("language", lang))
		return Prepared{Language: lang, Status: StatusUntranslatable}
	default:
		p.logger.Warn(ctx, "translation failed", logger.String("language", lang), logger.Error(err))
		return Prepared{Language: lang, Status: StatusDependencyFailure}
	}
}

// TextPreparer is satisfied by Preparer.
type TextPreparer interface {
	Prepare(ctx context.Context, s string) Prepared
}

// Comparison is a description score with both preparation outcomes.
type Comparison struct {
	Similarity float64  `json:"similarity"`
	A          Prepared `json:"a"`
	B          Prepared `json:"b"`
}

// Similarity scores two descriptions after preparing both.
type Similarity struct {
	preparer TextPreparer
}

// NewSimilarity creates a Similarity.
func NewSimilarity(preparer TextPreparer) *Similarity {
	return &Similarity{preparer: preparer}
}

// Score returns the TF-IDF cosine of the prepared texts, or 0 when either
// text could not be prepared.
func (s *Similarity) Score(ctx context.Context, a, b string) float64 {
	score, _, _ := s.ScoreDetailed(ctx, a, b)
	return score
}

// ScoreDetailed is Score plus both preparation outcomes.
func (s *Similarity) ScoreDetailed(ctx context.Context, a, b string) (float64, Prepared, Prepared) {
	pa := s.preparer.Prepare(ctx, a)
	pb := s.preparer.Prepare(ctx, b)
	if !pa.Usable() || !pb.Usable() {
		return 0, pa, pb
	}
	return TFIDFCosine(pa.Text, pb.Text), pa, pb
}
