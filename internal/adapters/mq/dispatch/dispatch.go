// Package dispatch delivers queued events to encounter trackers.
//
// The pool shards by encounter id: every event for one encounter hashes
// to the same queue and the same consumer goroutine, so each tracker has
// exactly one writer and sees its stream in enqueue order.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/Zaresol/staggerline/internal/adapters/mq/queue"
	"github.com/Zaresol/staggerline/internal/adapters/repository"
	"github.com/Zaresol/staggerline/internal/domain/model"
	"github.com/Zaresol/staggerline/internal/domain/tracker"
	"github.com/Zaresol/staggerline/pkg/logger"
	"github.com/Zaresol/staggerline/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

// Resolver finds the encounter an event belongs to.
type Resolver interface {
	Get(ctx context.Context, id string) (*repository.Encounter, error)
}

// Pool owns the sharded queues and their consumer goroutines.
type Pool struct {
	queues   []*queue.InMemoryQueue
	resolver Resolver
	totalCap int

	done []chan struct{}

	logger logger.Logger
}

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithLogger sets a custom logger for the pool.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPool creates a pool of shardCount queues, each bounded to queueSize.
func NewPool(shardCount, queueSize int, resolver Resolver, opts ...Option) *Pool {
	if shardCount < 1 {
		shardCount = 1
	}
	p := &Pool{
		queues:   make([]*queue.InMemoryQueue, shardCount),
		resolver: resolver,
		done:     make([]chan struct{}, shardCount),
	}
	for i := range p.queues {
		p.queues[i] = queue.NewInMemoryQueue(queue.WithCapacity(queueSize))
		p.done[i] = make(chan struct{})
		p.totalCap += p.queues[i].Cap()
	}
	for _, opt := range opts {
		opt(p)
	}
	metrics.UpdateQueueCapacity(queueSize)
	return p
}

// Start launches one consumer goroutine per shard.
func (p *Pool) Start(ctx context.Context) {
	if p.logger == nil {
		p.logger = logger.Get().Named("dispatch")
	}
	for i := range p.queues {
		go p.run(ctx, i)
	}
}

// Enqueue routes an event to its encounter's shard. Returns false on
// backpressure.
func (p *Pool) Enqueue(ctx context.Context, e model.Event) bool {
	ok := p.queues[p.shard(e.EncounterID)].Enqueue(ctx, e)
	if ok {
		size := p.Len(ctx)
		metrics.UpdateQueueSize(size)
		metrics.UpdateQueueUtilization(float64(size) / float64(p.totalCap))
	}
	return ok
}

// Len returns the total number of queued events across shards.
func (p *Pool) Len(ctx context.Context) int {
	n := 0
	for _, q := range p.queues {
		n += q.Len(ctx)
	}
	return n
}

// Shutdown closes the queues and waits for the consumers to drain them.
func (p *Pool) Shutdown(ctx context.Context) error {
	for _, q := range p.queues {
		_ = q.Close()
	}

	deadline, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	for i, done := range p.done {
		select {
		case <-done:
		case <-deadline.Done():
			return fmt.Errorf("dispatch shard %d shutdown timed out: %w", i, deadline.Err())
		}
	}
	return nil
}

func (p *Pool) shard(encounterID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(encounterID))
	return int(h.Sum32() % uint32(len(p.queues)))
}

func (p *Pool) run(ctx context.Context, shard int) {
	defer close(p.done[shard])

	for e := range p.queues[shard].Dequeue(ctx) {
		p.deliver(ctx, e)
	}
}

func (p *Pool) deliver(ctx context.Context, e model.Event) {
	enc, err := p.resolver.Get(ctx, e.EncounterID)
	if err != nil {
		// Encounter closed or never opened; the event has nowhere to go.
		metrics.RecordEventDropped()
		p.logger.Warn(ctx, "dropping event for unknown encounter",
			logger.String("encounterID", e.EncounterID),
			logger.String("kind", e.Kind.String()),
		)
		return
	}

	before := len(enc.Tracker.Purifies())
	if err := enc.Tracker.Ingest(e); err != nil {
		if errors.Is(err, tracker.ErrNoPriorStagger) {
			// Reportable but non-fatal: the removal was still recorded.
			metrics.RecordNoPriorStagger()
			p.logger.Warn(ctx, "purify without stagger history",
				logger.String("encounterID", e.EncounterID),
				logger.Int64("timestamp", e.Timestamp),
			)
		} else {
			p.logger.Error(ctx, "event ingestion failed",
				logger.String("encounterID", e.EncounterID),
				logger.Error(err),
			)
		}
		return
	}

	metrics.RecordEventIngested(e.Kind.String())
	if len(enc.Tracker.Purifies()) > before {
		metrics.RecordPurifyMarker()
	}
}
