// Package delivery drains pending events to the remote collection
// endpoint in signed batches. Rows flip to synced only after the remote
// acknowledged the batch, so a crash between transmit and mark leads to
// redelivery, never loss; the server-side upsert keyed on event id
// absorbs the duplicates.
package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aerolink-systems/aerolink-agent/internal/logging"
	"github.com/aerolink-systems/aerolink-agent/internal/metrics"
	"github.com/aerolink-systems/aerolink-agent/internal/models"
)

// failureLogEvery throttles the failure log: repeated outages produce
// one WARNING per five attempts instead of one per attempt.
const failureLogEvery = 5

// EventStore is the slice of the store the engine needs.
type EventStore interface {
	PendingDelivery(ctx context.Context, limit int) ([]*models.Event, error)
	MarkSynced(ctx context.Context, ids []string) error
}

// DiagLog receives best-effort diagnostic rows.
type DiagLog interface {
	AppendLog(ctx context.Context, level, component, message, details string) error
}

// Config carries the delivery cadence settings.
type Config struct {
	ClientID   int
	BatchSize  int
	Interval   time.Duration
	RetryDelay time.Duration
}

// Stats is a point-in-time snapshot for the status reporter.
type Stats struct {
	BatchesDelivered    int64     `json:"batches_delivered"`
	EventsDelivered     int64     `json:"events_delivered"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastSuccess         time.Time `json:"last_success"`
	LastError           string    `json:"last_error,omitempty"`
}

// Engine runs the delivery loop.
type Engine struct {
	store  EventStore
	client *Client
	diag   DiagLog
	cfg    Config
	logger *logging.Logger

	statsMu sync.RWMutex
	stats   Stats
}

func New(store EventStore, client *Client, diag DiagLog, cfg Config, logger *logging.Logger) *Engine {
	return &Engine{
		store:  store,
		client: client,
		diag:   diag,
		cfg:    cfg,
		logger: logger.With(logging.Component("delivery")),
	}
}

// Run executes cycles until the context is cancelled. A cycle in flight
// completes before shutdown; the sleep between cycles depends on the
// outcome, so retries come faster than routine polls.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("delivery engine started")

	for {
		delay := e.cycle(ctx)

		select {
		case <-ctx.Done():
			e.logger.Info("delivery engine stopped")
			return
		case <-time.After(delay):
		}
	}
}

// Stats returns a copy of the current counters.
func (e *Engine) Stats() Stats {
	e.statsMu.RLock()
	defer e.statsMu.RUnlock()
	return e.stats
}

// cycle attempts one batch and returns how long to sleep before the
// next one.
func (e *Engine) cycle(ctx context.Context) time.Duration {
	events, err := e.store.PendingDelivery(ctx, e.cfg.BatchSize)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("select").Inc()
		e.logger.Warn("failed to select pending events", logging.Error(err))
		e.setLastError(err)
		return e.cfg.Interval
	}
	if len(events) == 0 {
		return e.cfg.Interval
	}

	var create, update []*models.Event
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
		switch ev.Status {
		case models.StatusPendingUpdate:
			update = append(update, ev)
		default:
			create = append(create, ev)
		}
	}

	payload, err := buildPayload(e.cfg.ClientID, create, update)
	if err != nil {
		e.logger.Error("failed to build payload", logging.Error(err))
		e.setLastError(err)
		return e.cfg.Interval
	}

	if err := e.client.Send(ctx, payload); err != nil {
		return e.transmitFailed(ctx, err, len(events))
	}

	if err := e.store.MarkSynced(ctx, ids); err != nil {
		metrics.StoreErrors.WithLabelValues("mark_synced").Inc()
		// The batch reached the remote but the rows stayed pending;
		// they will be redelivered and upserted idempotently.
		e.logger.Error("delivered batch but failed to mark synced",
			logging.Count(len(ids)), logging.Error(err))
		e.setLastError(err)
		return e.cfg.Interval
	}

	metrics.DeliveryBatches.WithLabelValues("success").Inc()
	metrics.DeliveryEvents.Add(float64(len(events)))
	metrics.DeliveryConsecutiveFailures.Set(0)

	e.statsMu.Lock()
	e.stats.BatchesDelivered++
	e.stats.EventsDelivered += int64(len(events))
	e.stats.ConsecutiveFailures = 0
	e.stats.LastSuccess = time.Now()
	e.stats.LastError = ""
	e.statsMu.Unlock()

	e.logger.Info("batch delivered", logging.Count(len(events)))
	e.diagRow(ctx, "info", "batch delivered", fmt.Sprintf("%d create, %d update", len(create), len(update)))

	return e.cfg.Interval
}

// transmitFailed records a failed attempt. Events stay untouched in the
// store until a later attempt succeeds.
func (e *Engine) transmitFailed(ctx context.Context, err error, count int) time.Duration {
	metrics.DeliveryBatches.WithLabelValues("failure").Inc()

	e.statsMu.Lock()
	e.stats.ConsecutiveFailures++
	failures := e.stats.ConsecutiveFailures
	e.stats.LastError = err.Error()
	e.statsMu.Unlock()

	metrics.DeliveryConsecutiveFailures.Set(float64(failures))

	if failures%failureLogEvery == 0 {
		e.logger.Warn("delivery still failing, events retained",
			logging.Attempt(failures),
			logging.Count(count),
			logging.Error(err))
		e.diagRow(ctx, "warning", "delivery failing", err.Error())
	} else {
		e.logger.Debug("delivery attempt failed",
			logging.Attempt(failures),
			logging.Error(err))
	}

	return e.cfg.RetryDelay
}

func (e *Engine) setLastError(err error) {
	e.statsMu.Lock()
	e.stats.LastError = err.Error()
	e.statsMu.Unlock()
}

func (e *Engine) diagRow(ctx context.Context, level, message, details string) {
	if e.diag == nil {
		return
	}
	if err := e.diag.AppendLog(ctx, level, "delivery", message, details); err != nil {
		e.logger.Debug("diagnostic row not written", logging.Error(err))
	}
}
