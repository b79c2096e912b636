package genlog

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/Zaresol/staggerline/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "genlog_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the generator tool.
func ShowHelp() {
	os.Stdout.WriteString(`Staggerline Encounter Generator
===============================

Feeds a running staggerline service a deterministic synthetic combat log
and verifies the projected series against it.

Usage:
  go run cmd/genlog/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9090")
  -encounter string
        Encounter id to open (default: service-generated UUID)
  -seed int
        Generator seed; the same seed always produces the same stream (default 1)
  -fight duration
        Simulated encounter length (default 3m)
  -batch int
        Events per ingest request (default 500)
  -timeout duration
        HTTP request timeout (default 30s)
  -close
        Close and archive the encounter after verification
  -log string
        Log file for run output (default: genlog_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Feed a three-minute fight with the default seed
  go run cmd/genlog/main.go

  # A longer fight against a local service, archived at the end
  go run cmd/genlog/main.go -fight 10m -close

  # Reproduce a specific stream
  go run cmd/genlog/main.go -seed 42 -encounter replay-42
`)
}
