package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/Zaresol/staggerline/internal/genlog"
)

// Default configuration constants.
const (
	defaultSeed       = 1
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9090", "Base URL of the service")
		encounterID = flag.String("encounter", "", "Encounter id to open (default: service-generated UUID)")
		seed        = flag.Int64("seed", defaultSeed, "Generator seed")
		fight       = flag.Duration("fight", genlog.DefaultDuration, "Simulated encounter length")
		batch       = flag.Int("batch", genlog.DefaultBatchSize, "Events per ingest request")
		timeout     = flag.Duration("timeout", genlog.DefaultTimeout, "HTTP request timeout")
		closeEnc    = flag.Bool("close", false, "Close and archive the encounter after verification")
		logFile     = flag.String("log", "", "Log file for run output (default: genlog_TIMESTAMP.log)")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		genlog.ShowHelp()
		return
	}

	if err := genlog.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &genlog.Config{
		BaseURL:      *baseURL,
		EncounterID:  *encounterID,
		Seed:         *seed,
		Duration:     *fight,
		SwingPeriod:  genlog.DefaultSwingPeriod,
		TickPeriod:   genlog.DefaultTickPeriod,
		PurifyPeriod: genlog.DefaultPurifyPeriod,
		MaxHitPoints: genlog.DefaultMaxHitPoints,
		BatchSize:    *batch,
		Timeout:      *timeout,
		Close:        *closeEnc,
		Verbose:      *verbose,
		LogFile:      *logFile,
	}

	if err := genlog.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Run failed: " + err.Error() + "\n")
		return
	}
}
