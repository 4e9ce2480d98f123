// Package replication copies outbox entries into the realtime mirror.
package replication

import (
	"context"
	"sync"
	"time"

	"tariconnect/internal/domain/outbox"
	"tariconnect/internal/metrics"
	"tariconnect/internal/store"

	"github.com/rs/zerolog"
)

// Mirror is the realtime tree the relay writes into.
type Mirror interface {
	Put(ctx context.Context, path string, payload []byte) error
	Delete(ctx context.Context, path string) error
}

type Config struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

func DefaultConfig() Config {
	return Config{Interval: 2 * time.Second, BatchSize: 100, MaxAttempts: 5}
}

type Relay struct {
	store  *store.Store
	mirror Mirror
	cfg    Config
	log    zerolog.Logger

	mu      sync.Mutex
	lastRun Summary
}

// Summary describes one drained batch.
type Summary struct {
	At       time.Time `json:"at"`
	Read     int       `json:"read"`
	Mirrored int       `json:"mirrored"`
	Failed   int       `json:"failed"`
	Deferred int       `json:"deferred"`
}

func New(s *store.Store, m Mirror, cfg Config, log zerolog.Logger) *Relay {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	return &Relay{store: s, mirror: m, cfg: cfg, log: log.With().Str("component", "relay").Logger()}
}

// Run drains the outbox every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.log.Info().Dur("interval", r.cfg.Interval).Int("batch_size", r.cfg.BatchSize).Msg("relay started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("relay stopped")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.log.Error().Err(err).Msg("relay batch failed")
			}
		}
	}
}

// RunOnce mirrors one batch of pending entries in id order. After an entry
// fails, later entries for the same path wait for the next batch so a path
// is never written out of order.
func (r *Relay) RunOnce(ctx context.Context) (Summary, error) {
	sum := Summary{At: time.Now().UTC()}
	entries, err := r.store.ListPendingOutbox(ctx, r.cfg.BatchSize)
	if err != nil {
		return sum, err
	}
	sum.Read = len(entries)

	blocked := make(map[string]bool)
	for _, e := range entries {
		if blocked[e.Path] {
			sum.Deferred++
			continue
		}
		if err := r.apply(ctx, e); err != nil {
			blocked[e.Path] = true
			sum.Failed++
			metrics.MirrorWrites.WithLabelValues(string(e.Op), "error").Inc()
			r.log.Warn().Err(err).Uint("entry", e.ID).Str("path", e.Path).Int("attempt", e.Attempts+1).Msg("mirror write failed")
			if markErr := r.store.MarkOutboxAttempt(ctx, e, err, r.cfg.MaxAttempts); markErr != nil {
				return sum, markErr
			}
			continue
		}
		if err := r.store.MarkOutboxMirrored(ctx, e.ID); err != nil {
			return sum, err
		}
		sum.Mirrored++
		metrics.MirrorWrites.WithLabelValues(string(e.Op), "ok").Inc()
	}

	r.mu.Lock()
	r.lastRun = sum
	r.mu.Unlock()
	if sum.Read > 0 {
		r.log.Debug().Int("mirrored", sum.Mirrored).Int("failed", sum.Failed).Int("deferred", sum.Deferred).Msg("relay batch")
	}
	return sum, nil
}

func (r *Relay) apply(ctx context.Context, e outbox.Entry) error {
	switch e.Op {
	case outbox.OpRemove:
		return r.mirror.Delete(ctx, e.Path)
	default:
		return r.mirror.Put(ctx, e.Path, e.Payload)
	}
}

// Status is the relay's view of the outbox backlog.
type Status struct {
	Outbox     store.OutboxStats `json:"outbox"`
	LastRun    Summary           `json:"lastRun"`
	Requeued   int64             `json:"requeued,omitempty"`
	Superseded int64             `json:"superseded,omitempty"`
}

func (r *Relay) Status(ctx context.Context) (Status, error) {
	st, err := r.store.OutboxStats(ctx)
	if err != nil {
		return Status{}, err
	}
	metrics.OutboxPending.Set(float64(st.Pending))
	metrics.OutboxFailed.Set(float64(st.Failed))

	r.mu.Lock()
	last := r.lastRun
	r.mu.Unlock()
	return Status{Outbox: st, LastRun: last}, nil
}

// Reconcile gives failed entries a fresh attempt budget and refreshes the
// backlog gauges. Failed entries already overtaken by a later write to the
// same path are retired rather than replayed.
func (r *Relay) Reconcile(ctx context.Context) (Status, error) {
	n, dropped, err := r.store.RequeueFailedOutbox(ctx)
	if err != nil {
		return Status{}, err
	}
	st, err := r.Status(ctx)
	if err != nil {
		return Status{}, err
	}
	st.Requeued = n
	st.Superseded = dropped
	if n > 0 || dropped > 0 {
		r.log.Info().Int64("requeued", n).Int64("superseded", dropped).Msg("failed outbox entries reconciled")
	}
	return st, nil
}
