package translation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/internal/domain/text"
	"github.com/okian/affinity/pkg/logger"
	"github.com/okian/affinity/pkg/metrics"
)

const (
	defaultTimeout  = 15 * time.Second
	untranslatable  = "UNTRANSLATABLE"
	dependencyName  = "translator"
	translatePrompt = "Translate the following text into the language with ISO 639-1 code %q. " +
		"Reply with the translation only. If the text cannot be translated, reply with exactly " +
		untranslatable + ".\n\nText:\n%s"
)

// Generator produces a text completion for a prompt.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Translator translates text with a generative model.
type Translator struct {
	generator Generator
	timeout   time.Duration
	logger    logger.Logger
}

// Option applies a configuration option to the Translator.
type Option func(*Translator)

// WithTimeout bounds each translation call.
func WithTimeout(d time.Duration) Option {
	return func(t *Translator) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithLogger sets a custom logger for the translator.
func WithLogger(l logger.Logger) Option {
	return func(t *Translator) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTranslator creates a Translator over generator.
func NewTranslator(generator Generator, opts ...Option) *Translator {
	t := &Translator{
		generator: generator,
		timeout:   defaultTimeout,
		logger:    logger.Get().Named("translation"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate returns s in the target language. A refusal or empty answer is
// text.ErrUntranslatable; a failed call wraps model.ErrDependency.
func (t *Translator) Translate(ctx context.Context, s, target string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	out, err := t.generator.GenerateContent(ctx, fmt.Sprintf(translatePrompt, target, s))
	took := float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		metrics.RecordDependencyLatency(dependencyName, "error", took)
		return "", fmt.Errorf("%w: translate: %w", model.ErrDependency, err)
	}

	out = strings.TrimSpace(out)
	if out == "" || strings.EqualFold(out, untranslatable) {
		metrics.RecordDependencyLatency(dependencyName, "untranslatable", took)
		return "", text.ErrUntranslatable
	}
	metrics.RecordDependencyLatency(dependencyName, "ok", took)
	return out, nil
}

// Disabled is used when no translation backend is configured; every
// non-English text is reported untranslatable.
type Disabled struct{}

// Translate always returns text.ErrUntranslatable.
func (Disabled) Translate(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("translation disabled: %w", text.ErrUntranslatable)
}
