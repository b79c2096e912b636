// Package repository defines the encounter registry interface and errors.
//
// The registry owns the live trackers: one per open encounter, keyed by
// encounter id. Trackers are written only by the dispatcher shard the
// encounter hashes to; the registry itself only guards the map.
package repository

import (
	"context"
	"sync"
	"time"

	"github.com/Zaresol/staggerline/internal/domain/tracker"
	"github.com/Zaresol/staggerline/pkg/metrics"
)

// Encounter pairs a live tracker with its metadata.
type Encounter struct {
	ID        string
	StartTime int64 // encounter start timestamp for axis calibration
	OpenedAt  time.Time
	Tracker   *tracker.Tracker
}

// Store provides access to open encounters.
type Store interface {
	// Open registers a new encounter and its tracker.
	// Returns ErrExists if the id is already open and ErrLimitExceeded
	// when the registry is full.
	Open(ctx context.Context, id string, startTime int64) (*Encounter, error)

	// Get returns an open encounter. Returns ErrNotFound if unknown.
	Get(ctx context.Context, id string) (*Encounter, error)

	// Remove drops an encounter from the registry and returns it for
	// final projection. Returns ErrNotFound if unknown.
	Remove(ctx context.Context, id string) (*Encounter, error)

	// List returns the ids of all open encounters.
	List(ctx context.Context) []string

	// Count returns the number of open encounters.
	Count(ctx context.Context) int
}

// registry is the in-memory Store implementation.
type registry struct {
	mu            sync.RWMutex
	encounters    map[string]*Encounter
	maxEncounters int
	trackerOpts   []tracker.Option
}

// Option applies a configuration option to the registry.
type Option func(*registry)

// WithMaxEncounters caps the number of concurrently open encounters.
func WithMaxEncounters(n int) Option {
	return func(r *registry) {
		if n > 0 {
			r.maxEncounters = n
		}
	}
}

// WithTrackerOptions sets the options applied to every tracker the
// registry creates, e.g. the purification ability id.
func WithTrackerOptions(opts ...tracker.Option) Option {
	return func(r *registry) {
		r.trackerOpts = opts
	}
}

const defaultMaxEncounters = 1000

// NewRegistry creates an empty in-memory encounter registry.
func NewRegistry(opts ...Option) Store {
	r := &registry{
		encounters:    make(map[string]*Encounter),
		maxEncounters: defaultMaxEncounters,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *registry) Open(ctx context.Context, id string, startTime int64) (*Encounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.encounters[id]; ok {
		return nil, ErrExists
	}
	if len(r.encounters) >= r.maxEncounters {
		return nil, ErrLimitExceeded
	}

	enc := &Encounter{
		ID:        id,
		StartTime: startTime,
		OpenedAt:  time.Now(),
		Tracker:   tracker.New(r.trackerOpts...),
	}
	r.encounters[id] = enc

	metrics.RecordEncounterOpened()
	metrics.UpdateEncountersActive(len(r.encounters))
	return enc, nil
}

func (r *registry) Get(ctx context.Context, id string) (*Encounter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	enc, ok := r.encounters[id]
	if !ok {
		return nil, ErrNotFound
	}
	return enc, nil
}

func (r *registry) Remove(ctx context.Context, id string) (*Encounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	enc, ok := r.encounters[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.encounters, id)

	metrics.RecordEncounterClosed()
	metrics.UpdateEncountersActive(len(r.encounters))
	return enc, nil
}

func (r *registry) List(ctx context.Context) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.encounters))
	for id := range r.encounters {
		ids = append(ids, id)
	}
	return ids
}

func (r *registry) Count(ctx context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.encounters)
}
