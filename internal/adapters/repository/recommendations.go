package repository

import (
	"context"
	"fmt"

	"github.com/okian/affinity/internal/domain/model"
)

// ReplaceForSource deletes every stored recommendation of sourceID and
// inserts rows, in one transaction.
func (s *SQLiteStore) ReplaceForSource(ctx context.Context, sourceID string, rows []model.StoredRecommendation) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	err := s.withTx(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx,
			"DELETE FROM recommendations WHERE source_profile_id = ?", sourceID); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		for _, r := range rows {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO recommendations (id, source_profile_id, target_profile_id, similarity)
				VALUES (?, ?, ?, ?)`,
				r.ID, sourceID, r.TargetProfileID, r.Similarity,
			); err != nil {
				return fmt.Errorf("insert %s: %w", r.TargetProfileID, err)
			}
		}
		return nil
	})
	if err != nil {
		return persistence("replace recommendations", err)
	}
	return nil
}

// TopForSource returns up to limit stored recommendations of sourceID,
// best first. It returns model.ErrNotFound when none are stored.
func (s *SQLiteStore) TopForSource(ctx context.Context, sourceID string, limit int) ([]model.StoredRecommendation, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_profile_id, target_profile_id, similarity
		FROM recommendations
		WHERE source_profile_id = ?
		ORDER BY similarity DESC, target_profile_id
		LIMIT ?`, sourceID, limit)
	if err != nil {
		return nil, persistence("top recommendations", err)
	}
	defer rows.Close()

	var out []model.StoredRecommendation
	for rows.Next() {
		var r model.StoredRecommendation
		if err := rows.Scan(&r.ID, &r.SourceProfileID, &r.TargetProfileID, &r.Similarity); err != nil {
			return nil, persistence("scan recommendation", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("top recommendations", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("recommendations for %s: %w", sourceID, model.ErrNotFound)
	}
	return out, nil
}
