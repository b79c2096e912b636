package genlog

import (
	"context"
	"fmt"

	"github.com/Zaresol/staggerline/internal/domain/series"
	"github.com/Zaresol/staggerline/pkg/logger"
)

// verifyReport checks the projected series against the stream that was
// submitted. Every check is derived from the generated events, so a
// mismatch points at lost or reordered ingestion rather than bad luck.
func verifyReport(ctx context.Context, events []Event, report series.Report, stats *Stats) error {
	var (
		wantPool     int
		wantPurifies int
		wantDeaths   int
	)
	for _, e := range events {
		switch e.Kind {
		case "stagger_add", "stagger_remove":
			wantPool++
			if e.Kind == "stagger_remove" && e.AbilityID == PurifyAbilityID {
				wantPurifies++
			}
		case "death":
			wantDeaths++
		}
	}

	stats.PoolPoints = len(report.Pool)
	stats.PurifyMarkers = len(report.Purifies)
	stats.DeathMarkers = len(report.Deaths)

	if len(report.Pool) != wantPool {
		return fmt.Errorf("pool points: got %d, want %d", len(report.Pool), wantPool)
	}
	if len(report.Purifies) != wantPurifies {
		return fmt.Errorf("purify markers: got %d, want %d", len(report.Purifies), wantPurifies)
	}
	if len(report.Deaths) != wantDeaths {
		return fmt.Errorf("death markers: got %d, want %d", len(report.Deaths), wantDeaths)
	}

	// The stream was submitted in timestamp order; the pool series must
	// preserve it.
	for i := 1; i < len(report.Pool); i++ {
		if report.Pool[i].X < report.Pool[i-1].X {
			return fmt.Errorf("pool series out of order at index %d: %d < %d",
				i, report.Pool[i].X, report.Pool[i-1].X)
		}
	}

	// Every purify marker sits on a pool peak, so a pool point must exist
	// near its timestamp.
	for i, m := range report.Purifies {
		if _, ok := report.PoolPointNear(m.X, series.DefaultMatchTolerance); !ok {
			return fmt.Errorf("purify marker %d at %d has no nearby pool point", i, m.X)
		}
		if m.Amount <= 0 {
			return fmt.Errorf("purify marker %d has non-positive amount %f", i, m.Amount)
		}
		if m.Y < m.Amount {
			return fmt.Errorf("purify marker %d reconstructs pool %f below amount %f", i, m.Y, m.Amount)
		}
	}

	logger.Get().Info(ctx, "report verified",
		logger.Int("poolPoints", len(report.Pool)),
		logger.Int("purifyMarkers", len(report.Purifies)),
		logger.Int("healthPoints", len(report.Health)),
		logger.Int("deathMarkers", len(report.Deaths)),
	)
	return nil
}
