package rankcheck

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/pkg/logger"
)

// Pools the generator draws from. Cities are real so the geocoder resolves them.
var (
	cities = []string{ //nolint:gochecknoglobals // fixture pool
		"Berlin", "Hamburg", "Munich", "Cologne", "Potsdam", "Vienna", "Zurich", "Paris", "Amsterdam", "Warsaw",
	}
	professions = []string{ //nolint:gochecknoglobals // fixture pool
		"Software Engineer", "Data Scientist", "Product Manager", "Designer", "Nurse", "Teacher", "Accountant",
	}
	descriptions = []string{ //nolint:gochecknoglobals // fixture pool
		"backend developer who enjoys distributed systems and go",
		"machine learning with python and large data pipelines",
		"designing accessible interfaces for mobile apps",
		"caring for patients in intensive care units",
		"teaching mathematics to secondary school students",
		"",
	}
	firstNames = []string{"Anna", "Ben", "Clara", "David", "Eva", "Felix", "Greta", "Jonas"} //nolint:gochecknoglobals // fixture pool
	surnames   = []string{"Becker", "Fischer", "Klein", "Meyer", "Schmidt", "Wagner"}        //nolint:gochecknoglobals // fixture pool
)

// Birth dates span this many days back from minBirthAge years ago.
const (
	minBirthAge     = 20
	birthSpanDays   = 40 * 365
	maxExperience10 = 400 // tenths of a year
)

// randInt returns a uniform value in [0, n) using crypto/rand.
func randInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

func pick(pool []string) string { return pool[randInt(len(pool))] }

// generateProfiles creates NumProfiles profiles with unique UUID ids.
func generateProfiles(ctx context.Context, config *Config, stats *Stats) ([]model.Profile, error) {
	if config.NumProfiles < 1 {
		return nil, fmt.Errorf("number of profiles must be positive, got %d", config.NumProfiles)
	}
	logger.Get().Info(ctx, "generating profiles", logger.Int("numProfiles", config.NumProfiles))

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	youngest := today.AddDate(-minBirthAge, 0, 0)

	profiles := make([]model.Profile, config.NumProfiles)
	for i := range profiles {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during profile generation: %w", err)
		}
		gender := model.GenderMan
		if randInt(2) == 1 {
			gender = model.GenderWoman
		}
		profiles[i] = model.Profile{
			ID:              uuid.NewString(),
			FirstName:       pick(firstNames),
			Surname:         pick(surnames),
			CreatedDate:     today,
			Description:     pick(descriptions),
			BirthDate:       youngest.AddDate(0, 0, -randInt(birthSpanDays)),
			Gender:          gender,
			CityName:        pick(cities),
			ProfessionLabel: pick(professions),
			ExperienceYears: float64(randInt(maxExperience10+1)) / 10,
		}
	}

	stats.ProfilesGenerated = len(profiles)
	return profiles, nil
}
