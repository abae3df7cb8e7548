package rankcheck

import (
	"context"
	"fmt"

	"github.com/okian/affinity/internal/adapters/repository"
	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/pkg/logger"
)

// seedProfiles writes profiles into the SQLite database at path.
func seedProfiles(ctx context.Context, path string, profiles []model.Profile, stats *Stats) error {
	store, err := repository.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Get().Warn(ctx, "failed to close database", logger.Error(err))
		}
	}()

	if err := store.UpsertProfiles(ctx, profiles); err != nil {
		return fmt.Errorf("upsert profiles: %w", err)
	}
	stats.ProfilesSeeded = len(profiles)
	logger.Get().Info(ctx, "profiles seeded", logger.Int("count", len(profiles)), logger.String("db", path))
	return nil
}
