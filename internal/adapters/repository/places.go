package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/okian/affinity/internal/domain/model"
)

const placeColumns = "id, canonical_name, country, latitude, longitude"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPlace(r rowScanner) (model.Place, error) {
	var p model.Place
	err := r.Scan(&p.ID, &p.CanonicalName, &p.Country, &p.Latitude, &p.Longitude)
	return p, err
}

// FindPlaceByName returns the place stored under the exact name.
func (s *SQLiteStore) FindPlaceByName(ctx context.Context, name string) (model.Place, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	p, err := scanPlace(s.db.QueryRowContext(ctx,
		"SELECT "+placeColumns+" FROM places WHERE canonical_name = ?", name))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Place{}, fmt.Errorf("place %q: %w", name, model.ErrNotFound)
	}
	if err != nil {
		return model.Place{}, persistence("find place", err)
	}
	return p, nil
}

// UpsertPlace inserts p unless its name is taken and returns the stored row.
// When two writers race on a new name, both get the winner's row.
func (s *SQLiteStore) UpsertPlace(ctx context.Context, p model.Place) (model.Place, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var stored model.Place
	err := s.withTx(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO places (`+placeColumns+`) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(canonical_name) DO NOTHING`,
			p.ID, p.CanonicalName, p.Country, p.Latitude, p.Longitude,
		); err != nil {
			return fmt.Errorf("insert: %w", err)
		}

		var err error
		stored, err = scanPlace(q.QueryRowContext(ctx,
			"SELECT "+placeColumns+" FROM places WHERE canonical_name = ?", p.CanonicalName))
		if err != nil {
			return fmt.Errorf("fetch: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Place{}, persistence("upsert place", err)
	}
	return stored, nil
}

// ListPlaces returns every stored place ordered by name.
func (s *SQLiteStore) ListPlaces(ctx context.Context) ([]model.Place, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "SELECT "+placeColumns+" FROM places ORDER BY canonical_name")
	if err != nil {
		return nil, persistence("list places", err)
	}
	defer rows.Close()

	var out []model.Place
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, persistence("scan place", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("list places", err)
	}
	return out, nil
}

// CountPlaces returns the number of stored places.
func (s *SQLiteStore) CountPlaces(ctx context.Context) (int, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM places").Scan(&n); err != nil {
		return 0, persistence("count places", err)
	}
	return n, nil
}
