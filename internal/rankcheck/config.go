// Package rankcheck seeds profiles into the service database and verifies
// the live rankings the service returns for them.
package rankcheck

import (
	"time"

	"github.com/okian/affinity/internal/domain/types"
)

// Config holds configuration for a rank check run.
type Config struct {
	BaseURL     string        // Base URL of the service
	DBPath      string        // SQLite database the service reads; empty skips seeding
	NumProfiles int           // Number of profiles to generate
	TopK        int           // Maximum ranking length the service is configured for
	Workers     int           // Number of concurrent ranking requests
	Timeout     time.Duration // HTTP request timeout
	OutputFile  string        // Output file for generated profiles
	Verbose     bool          // Log every ranking
}

// Ranking is the live ranking payload.
type Ranking = types.Ranking

// Stats holds run statistics.
type Stats struct {
	ProfilesGenerated int
	ProfilesSeeded    int
	RankingsRetrieved int
	RankingsFailed    int
	RankingsInvalid   int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
