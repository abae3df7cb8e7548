package rankcheck

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/affinity/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging logs to stdout and to logFile. If logFile is empty, a
// timestamped filename is generated. The returned closer releases the file.
func SetupLogging(logFile string) (io.Closer, error) {
	if logFile == "" {
		logFile = "rank_check_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.InitWithFormat(logger.FormatText, io.MultiWriter(os.Stdout, file)); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return file, nil
}

// ShowHelp prints usage information for the rank check tool.
func ShowHelp() {
	os.Stdout.WriteString(`Affinity Rank Check
===================

Seeds random profiles into the service database and verifies the live
ranking the service returns for each of them.

Usage:
  go run ./cmd/rank-check [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -db string
        SQLite database the service reads; empty skips seeding (default "affinity.db")
  -profiles int
        Number of profiles to generate (default 200)
  -top int
        Ranking length the service is configured for (default 10)
  -workers int
        Number of concurrent ranking requests (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 60s)
  -output string
        Output file for generated profiles (default: none)
  -log string
        Log file for test output (default: rank_check_TIMESTAMP.log)
  -verbose
        Log every ranking
  -help
        Show this help message

Examples:
  # Check with default settings
  go run ./cmd/rank-check

  # Larger run against another instance
  go run ./cmd/rank-check -profiles 2000 -workers 32 -url http://localhost:8080 -db /data/affinity.db
`)
}
