package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okian/affinity/internal/domain/model"
)

// dateLayout is how calendar dates are stored.
const dateLayout = "2006-01-02"

const profileColumns = `id, first_name, surname, created_date, description,
	birth_date, gender, city_name, profession_label, experience_years`

func scanProfile(r rowScanner) (model.Profile, error) {
	var (
		p              model.Profile
		created, birth string
		gender         string
	)
	if err := r.Scan(&p.ID, &p.FirstName, &p.Surname, &created, &p.Description,
		&birth, &gender, &p.CityName, &p.ProfessionLabel, &p.ExperienceYears); err != nil {
		return model.Profile{}, err
	}
	var err error
	if p.CreatedDate, err = time.Parse(dateLayout, created); err != nil {
		return model.Profile{}, fmt.Errorf("created_date: %w", err)
	}
	if p.BirthDate, err = time.Parse(dateLayout, birth); err != nil {
		return model.Profile{}, fmt.Errorf("birth_date: %w", err)
	}
	p.Gender = model.Gender(gender)
	return p, nil
}

// GetProfile returns one profile.
func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (model.Profile, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	p, err := scanProfile(s.db.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Profile{}, fmt.Errorf("profile %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.Profile{}, persistence("get profile", err)
	}
	return p, nil
}

// ListProfilesExcluding returns every profile except id, oldest first.
func (s *SQLiteStore) ListProfilesExcluding(ctx context.Context, id string) ([]model.Profile, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE id <> ? ORDER BY created_date, id", id)
	if err != nil {
		return nil, persistence("list profiles", err)
	}
	defer rows.Close()

	var out []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, persistence("scan profile", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("list profiles", err)
	}
	return out, nil
}

// CountProfiles returns the number of stored profiles.
func (s *SQLiteStore) CountProfiles(ctx context.Context) (int, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM profiles").Scan(&n); err != nil {
		return 0, persistence("count profiles", err)
	}
	return n, nil
}

// UpsertProfiles writes profiles, replacing rows with the same id. Profiles
// are owned upstream; this exists for seeding and fixtures.
func (s *SQLiteStore) UpsertProfiles(ctx context.Context, profiles []model.Profile) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	err := s.withTx(ctx, func(q querier) error {
		for _, p := range profiles {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					first_name = excluded.first_name,
					surname = excluded.surname,
					created_date = excluded.created_date,
					description = excluded.description,
					birth_date = excluded.birth_date,
					gender = excluded.gender,
					city_name = excluded.city_name,
					profession_label = excluded.profession_label,
					experience_years = excluded.experience_years`,
				p.ID, p.FirstName, p.Surname, p.CreatedDate.Format(dateLayout), p.Description,
				p.BirthDate.Format(dateLayout), string(p.Gender), p.CityName, p.ProfessionLabel, p.ExperienceYears,
			); err != nil {
				return fmt.Errorf("profile %s: %w", p.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return persistence("upsert profiles", err)
	}
	return nil
}
