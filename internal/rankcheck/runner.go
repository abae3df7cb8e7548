package rankcheck

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run executes the complete rank check.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting affinity rank check",
		logger.String("baseURL", config.BaseURL),
		logger.String("db", config.DBPath),
		logger.Int("profiles", config.NumProfiles),
		logger.Int("topK", config.TopK),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Bool("verbose", config.Verbose))

	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	profiles, err := generateProfiles(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("profile generation failed: %w", err)
	}

	if config.DBPath != "" {
		if err := seedProfiles(ctx, config.DBPath, profiles, stats); err != nil {
			return fmt.Errorf("profile seeding failed: %w", err)
		}
	}

	results, err := retrieveRankings(ctx, config, profiles, stats)
	if err != nil {
		return fmt.Errorf("ranking retrieval failed: %w", err)
	}

	verifyErr := verifyResults(ctx, config, results, stats)

	if config.OutputFile != "" {
		if err := saveProfilesToFile(ctx, config.OutputFile, profiles); err != nil {
			log.Warn(ctx, "failed to save profiles to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if verifyErr != nil {
		return fmt.Errorf("result verification failed: %w", verifyErr)
	}
	log.Info(ctx, "rank check completed successfully")
	return nil
}

// checkServiceHealth verifies the service and its dependencies are healthy.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")
	if err := newHTTPClient(config.Timeout).GetJSON(ctx, config.BaseURL+"/healthz", nil); err != nil {
		return err
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveProfilesToFile writes the generated profiles as a JSON array.
func saveProfilesToFile(ctx context.Context, filename string, profiles []model.Profile) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "profiles saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var rankingsPerSecond float64
	if stats.Duration > 0 {
		rankingsPerSecond = float64(stats.RankingsRetrieved) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("profilesGenerated", stats.ProfilesGenerated),
		logger.Int("profilesSeeded", stats.ProfilesSeeded),
		logger.Int("rankingsRetrieved", stats.RankingsRetrieved),
		logger.Int("rankingsFailed", stats.RankingsFailed),
		logger.Int("rankingsInvalid", stats.RankingsInvalid),
		logger.Duration("duration", stats.Duration),
		logger.Float64("rankingsPerSecond", rankingsPerSecond))
}
