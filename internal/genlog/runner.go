package genlog

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Zaresol/staggerline/internal/domain/series"
	"github.com/Zaresol/staggerline/pkg/logger"
)

// Run opens an encounter, feeds it a synthetic combat log and verifies
// the projected series against the generated stream.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting staggerline generator run",
		logger.String("baseURL", config.BaseURL),
		logger.Int64("seed", config.Seed),
		logger.String("duration", config.Duration.String()),
		logger.Int("batchSize", config.BatchSize),
	)

	client := newHTTPClient(config.Timeout)

	if err := checkServiceHealth(ctx, client, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	encounterID, err := openEncounter(ctx, client, config)
	if err != nil {
		return fmt.Errorf("opening encounter failed: %w", err)
	}
	logger.Get().Info(ctx, "encounter opened", logger.String("encounterID", encounterID))

	events, err := generateEncounter(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("event generation failed: %w", err)
	}

	if err := submitEvents(ctx, client, config, encounterID, events, stats); err != nil {
		return fmt.Errorf("event submission failed: %w", err)
	}

	logger.Get().Info(ctx, "waiting for the dispatcher to drain")
	time.Sleep(SettleDelay)

	report, err := fetchSeries(ctx, client, config, encounterID)
	if err != nil {
		return fmt.Errorf("series retrieval failed: %w", err)
	}

	if err := verifyReport(ctx, events, report, stats); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	if config.Close {
		if err := closeEncounter(ctx, client, config, encounterID); err != nil {
			return fmt.Errorf("closing encounter failed: %w", err)
		}
		logger.Get().Info(ctx, "encounter closed and archived", logger.String("encounterID", encounterID))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	logger.Get().Info(ctx, "run completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *httpClient, config *Config) error {
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()

	// Any 200 counts as healthy; the endpoint serves Prometheus metrics.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

type openRequest struct {
	EncounterID string `json:"encounter_id,omitempty"`
	StartTime   int64  `json:"start_time"`
}

type openResponse struct {
	EncounterID string `json:"encounter_id"`
	StartTime   int64  `json:"start_time"`
}

func openEncounter(ctx context.Context, client *httpClient, config *Config) (string, error) {
	resp, err := client.Post(ctx, config.BaseURL+"/v1/encounters", openRequest{
		EncounterID: config.EncounterID,
	})
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusCreated {
		resp.Body.Close()
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var opened openResponse
	if err := decodeResponse(resp, &opened); err != nil {
		return "", err
	}
	return opened.EncounterID, nil
}

type batchRequest struct {
	Events []Event `json:"events"`
}

type batchResponse struct {
	Status     string `json:"status"`
	Accepted   int    `json:"accepted"`
	Duplicates int    `json:"duplicates"`
}

// submitEvents posts the stream in order, batch by batch. Order matters
// for the projection, so batches are sequential rather than concurrent.
// A 429 means the queue pushed back; the batch is retried after a pause.
func submitEvents(ctx context.Context, client *httpClient, config *Config, encounterID string, events []Event, stats *Stats) error {
	url := config.BaseURL + "/v1/encounters/" + encounterID + "/events"

	for start := 0; start < len(events); start += config.BatchSize {
		end := start + config.BatchSize
		if end > len(events) {
			end = len(events)
		}
		batch := batchRequest{Events: events[start:end]}

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			resp, err := client.Post(ctx, url, batch)
			if err != nil {
				return fmt.Errorf("batch at %d: %w", start, err)
			}

			if resp.StatusCode == http.StatusTooManyRequests {
				resp.Body.Close()
				time.Sleep(200 * time.Millisecond)
				continue
			}
			if resp.StatusCode != http.StatusAccepted {
				resp.Body.Close()
				return fmt.Errorf("batch at %d: unexpected status %d", start, resp.StatusCode)
			}

			var ack batchResponse
			if err := decodeResponse(resp, &ack); err != nil {
				return fmt.Errorf("batch at %d: %w", start, err)
			}

			stats.BatchesSent++
			stats.EventsSubmitted += len(batch.Events)
			stats.EventsAccepted += ack.Accepted
			stats.EventsDuplicate += ack.Duplicates

			if config.Verbose {
				logger.Get().Info(ctx, "batch accepted",
					logger.Int("offset", start),
					logger.Int("accepted", ack.Accepted),
					logger.Int("duplicates", ack.Duplicates),
				)
			}
			break
		}
	}
	return nil
}

func fetchSeries(ctx context.Context, client *httpClient, config *Config, encounterID string) (series.Report, error) {
	resp, err := client.Get(ctx, config.BaseURL+"/v1/encounters/"+encounterID+"/series")
	if err != nil {
		return series.Report{}, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return series.Report{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var report series.Report
	if err := decodeResponse(resp, &report); err != nil {
		return series.Report{}, err
	}
	return report, nil
}

func closeEncounter(ctx context.Context, client *httpClient, config *Config, encounterID string) error {
	resp, err := client.Delete(ctx, config.BaseURL+"/v1/encounters/"+encounterID)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// displayFinalStats prints the final run statistics.
func displayFinalStats(stats *Stats) {
	var eventsPerSecond float64
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("eventsGenerated", stats.EventsGenerated),
		logger.Int("eventsSubmitted", stats.EventsSubmitted),
		logger.Int("eventsAccepted", stats.EventsAccepted),
		logger.Int("eventsDuplicate", stats.EventsDuplicate),
		logger.Int("batchesSent", stats.BatchesSent),
		logger.Int("poolPoints", stats.PoolPoints),
		logger.Int("purifyMarkers", stats.PurifyMarkers),
		logger.Int("deathMarkers", stats.DeathMarkers),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("eventsPerSecond", eventsPerSecond),
	)
}
