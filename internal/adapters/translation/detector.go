package translation

import (
	"context"

	"github.com/abadojack/whatlanggo"

	"github.com/okian/affinity/internal/domain/text"
)

// Detector identifies languages in-process with trigram statistics.
type Detector struct {
	requireReliable bool
}

// NewDetector creates a Detector. With requireReliable, low-confidence
// guesses are reported as undetected.
func NewDetector(requireReliable bool) *Detector {
	return &Detector{requireReliable: requireReliable}
}

// Detect returns the ISO 639-1 code of the dominant language of s.
func (d *Detector) Detect(_ context.Context, s string) (string, error) {
	info := whatlanggo.Detect(s)
	code := info.Lang.Iso6391()
	if code == "" || (d.requireReliable && !info.IsReliable()) {
		return "", text.ErrUndetected
	}
	return code, nil
}
