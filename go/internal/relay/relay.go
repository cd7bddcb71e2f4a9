// Package relay forwards document store changes to a message broker.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mcdev12/roomclocks/go/internal/docstore"
	"github.com/rs/zerolog/log"
)

// DocumentSource defines what the relay needs from the document store
type DocumentSource interface {
	Get(ctx context.Context, ref docstore.DocumentRef) (*docstore.Snapshot, error)
	Hub() *docstore.Hub
}

// Relay reads changes from a store hub and publishes one envelope per change.
type Relay struct {
	source    DocumentSource
	publisher Publisher
	cfg       Config
	changes   chan docstore.Change

	mu        sync.Mutex
	running   bool
	processed uint64
	failed    uint64
	dropped   uint64
	lastEvent time.Time
}

func NewRelay(source DocumentSource, publisher Publisher, cfg Config) *Relay {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	return &Relay{
		source:    source,
		publisher: publisher,
		cfg:       cfg,
		changes:   make(chan docstore.Change, cfg.BufferSize),
	}
}

// Start blocks until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return errors.New("relay already running")
	}
	r.running = true
	r.mu.Unlock()

	remove := r.source.Hub().OnChange(r.enqueue)
	defer func() {
		remove()
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	log.Info().
		Int("buffer_size", r.cfg.BufferSize).
		Int("max_retries", r.cfg.MaxRetries).
		Msg("relay started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("relay shutting down")
			return nil
		case change := <-r.changes:
			if err := r.handleChange(ctx, change); err != nil {
				log.Error().Err(err).Str("path", change.Path).Msg("failed to relay change")
			}
		}
	}
}

// enqueue runs on the hub's publishing goroutine and must not block.
func (r *Relay) enqueue(change docstore.Change) {
	select {
	case r.changes <- change:
	default:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
		log.Warn().Str("path", change.Path).Str("change_id", change.ID).Msg("relay buffer full, dropping change")
	}
}

// handleChange reads the current document unless it was deleted and publishes
// the envelope.
func (r *Relay) handleChange(ctx context.Context, change docstore.Change) error {
	var snap *docstore.Snapshot
	if change.Kind != docstore.ChangeDeleted {
		ref, err := docstore.ParseDocumentPath(change.Path)
		if err != nil {
			return fmt.Errorf("failed to parse change path: %w", err)
		}
		snap, err = r.source.Get(ctx, ref)
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("failed to read changed document: %w", err)
		}
	}

	err := r.publishWithRetry(ctx, NewEnvelope(change, snap))

	r.mu.Lock()
	if err != nil {
		r.failed++
	} else {
		r.processed++
		r.lastEvent = time.Now()
	}
	r.mu.Unlock()
	return err
}

// publishWithRetry attempts to publish env with a linear backoff.
func (r *Relay) publishWithRetry(ctx context.Context, env Envelope) error {
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := r.publisher.Publish(ctx, env); err != nil {
			lastErr = err
			log.Error().
				Err(err).
				Int("attempt", attempt+1).
				Str("change_id", env.ChangeID).
				Msg("failed to publish, retrying")
			continue
		}

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("change_id", env.ChangeID).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	return fmt.Errorf("publish failed after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}

// Stats is a point in time view of relay progress.
type Stats struct {
	Running   bool      `json:"running"`
	Processed uint64    `json:"processed"`
	Failed    uint64    `json:"failed"`
	Dropped   uint64    `json:"dropped"`
	LastEvent time.Time `json:"last_event"`
	Pending   int       `json:"pending"`
}

func (r *Relay) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Running:   r.running,
		Processed: r.processed,
		Failed:    r.failed,
		Dropped:   r.dropped,
		LastEvent: r.lastEvent,
		Pending:   len(r.changes),
	}
}
