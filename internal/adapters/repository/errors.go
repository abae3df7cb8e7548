package repository

import (
	"errors"
	"fmt"

	"github.com/okian/affinity/internal/domain/model"
)

// Sentinel kinds for repository errors.
var (
	ErrInvalidLimit = errors.New("invalid recommendation limit")
	ErrClosed       = errors.New("repository closed")
)

// persistence wraps a driver error so callers can match model.ErrPersistence.
func persistence(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, model.ErrPersistence, err)
}
