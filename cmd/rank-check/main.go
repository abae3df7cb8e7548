package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/affinity/internal/rankcheck"
)

// Default configuration constants.
const (
	defaultNumProfiles = 200
	defaultTopK        = 10
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 60 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		dbPath      = flag.String("db", "affinity.db", "SQLite database the service reads; empty skips seeding")
		numProfiles = flag.Int("profiles", defaultNumProfiles, "Number of profiles to generate")
		topK        = flag.Int("top", defaultTopK, "Ranking length the service is configured for")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent ranking requests")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile  = flag.String("output", "", "Output file for generated profiles")
		logFile     = flag.String("log", "", "Log file for test output (default: rank_check_TIMESTAMP.log)")
		verbose     = flag.Bool("verbose", false, "Log every ranking")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		rankcheck.ShowHelp()
		return
	}

	closer, err := rankcheck.SetupLogging(*logFile)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closer.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &rankcheck.Config{
		BaseURL:     *baseURL,
		DBPath:      *dbPath,
		NumProfiles: *numProfiles,
		TopK:        *topK,
		Workers:     *workers,
		Timeout:     *timeout,
		OutputFile:  *outputFile,
		Verbose:     *verbose,
	}

	if err := rankcheck.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Rank check failed: " + err.Error() + "\n")
		cancel()
		_ = closer.Close()
		os.Exit(1)
	}
}
