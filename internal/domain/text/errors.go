package text

import "errors"

// Sentinel kinds reported by Detector and Translator implementations.
var (
	// ErrUndetected means the language of the text could not be determined.
	ErrUndetected = errors.New("language not detected")
	// ErrUntranslatable means the translator answered but produced no usable text.
	ErrUntranslatable = errors.New("text cannot be translated")
)
