// Package correlation rewrites stored beacon events in place: it ages
// identity confidence by repetition frequency and binds measurement
// events to the identity observed closest in beacon time. Both passes
// recompute confidence from scratch, so re-running a cycle over an
// unchanged set writes nothing.
package correlation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aerolink-systems/aerolink-agent/internal/logging"
	"github.com/aerolink-systems/aerolink-agent/internal/metrics"
	"github.com/aerolink-systems/aerolink-agent/internal/models"
)

// Windows and bonuses for the two passes. Identity and measurement
// beacons for the same aircraft are not synchronized: the ±2s window
// catches tight correlations with high confidence, the ±20s window the
// common "only one aircraft nearby" case, and the settling delay keeps
// the engine from binding against a still-incomplete context.
const (
	agingWindow      = 30 * time.Second
	settlingOldest   = 100 * time.Second
	settlingYoungest = 20 * time.Second
	contextRadius    = 120 * time.Second
	globalRadius     = 20 * time.Second
	proximityRadius  = 2 * time.Second
	closeRadius      = time.Second

	globalBonus   = 20
	closeBonus    = 50
	nearBonus     = 20
	maxConfidence = 100
)

// EventStore is the slice of the store the engine needs.
type EventStore interface {
	SyncedIdentitiesSince(ctx context.Context, since time.Time) ([]*models.Event, error)
	MeasurementsSettling(ctx context.Context, from, to time.Time) ([]*models.Event, error)
	IdentitiesByEventTime(ctx context.Context, from, to string) ([]*models.Event, error)
	ApplyCorrelation(ctx context.Context, updates []models.CorrelationUpdate) error
}

// DiagLog receives best-effort diagnostic rows.
type DiagLog interface {
	AppendLog(ctx context.Context, level, component, message, details string) error
}

// Stats is a point-in-time snapshot of the engine for the status
// reporter.
type Stats struct {
	CyclesRun   int64  `json:"cycles_run"`
	RowsAged    int64  `json:"rows_aged"`
	RowsBound   int64  `json:"rows_bound"`
	LastCycleMS int64  `json:"last_cycle_ms"`
	LastError   string `json:"last_error,omitempty"`
}

// Engine runs the two correlation passes on a fixed interval.
type Engine struct {
	store    EventStore
	diag     DiagLog
	interval time.Duration
	now      func() time.Time
	logger   *logging.Logger

	statsMu sync.RWMutex
	stats   Stats
}

func New(store EventStore, diag DiagLog, interval time.Duration, now func() time.Time, logger *logging.Logger) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:    store,
		diag:     diag,
		interval: interval,
		now:      now,
		logger:   logger.With(logging.Component("correlation")),
	}
}

// Run executes cycles until the context is cancelled. The first cycle
// starts immediately.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("correlation engine started")

	e.cycle(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("correlation engine stopped")
			return
		case <-ticker.C:
			e.cycle(ctx)
		}
	}
}

// Stats returns a copy of the current counters.
func (e *Engine) Stats() Stats {
	e.statsMu.RLock()
	defer e.statsMu.RUnlock()
	return e.stats
}

// cycle runs both passes. A store error aborts the remainder of the
// cycle; a panic in scoring is recovered so one poisoned row cannot
// take the loop down.
func (e *Engine) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("cycle panic: %v", r)
			e.logger.Error("correlation cycle panicked", logging.Error(err))
			e.recordError(err)
			e.diagRow(ctx, "error", "correlation cycle panicked", fmt.Sprint(r))
		}
	}()

	start := time.Now()
	now := e.now()

	aged, err := e.ageIdentities(ctx, now)
	if err != nil {
		e.logger.Warn("identity aging failed", logging.Error(err))
		e.recordError(err)
		return
	}

	bound, err := e.bindMeasurements(ctx, now)
	if err != nil {
		e.logger.Warn("measurement binding failed", logging.Error(err))
		e.recordError(err)
		return
	}

	metrics.CorrelationCycles.Inc()

	elapsed := time.Since(start)
	e.statsMu.Lock()
	e.stats.CyclesRun++
	e.stats.RowsAged += int64(aged)
	e.stats.RowsBound += int64(bound)
	e.stats.LastCycleMS = elapsed.Milliseconds()
	e.stats.LastError = ""
	e.statsMu.Unlock()

	if aged > 0 || bound > 0 {
		e.logger.Debug("correlation cycle complete",
			logging.Count(aged+bound),
			logging.Duration(elapsed.Milliseconds()))
	}
}

// ageIdentities maps repetition count in the trailing window to
// confidence for synced identity events. Only rows whose confidence
// actually moves are rewritten, as synced -> pending_update.
func (e *Engine) ageIdentities(ctx context.Context, now time.Time) (int, error) {
	identities, err := e.store.SyncedIdentitiesSince(ctx, now.Add(-agingWindow))
	if err != nil {
		metrics.StoreErrors.WithLabelValues("select").Inc()
		return 0, fmt.Errorf("failed to load synced identities: %w", err)
	}
	if len(identities) == 0 {
		return 0, nil
	}

	counts := make(map[string]int, len(identities))
	for _, id := range identities {
		counts[id.IdentityLabel]++
	}

	var updates []models.CorrelationUpdate
	for _, id := range identities {
		next := agedConfidence(counts[id.IdentityLabel], id.Confidence)
		if next == id.Confidence {
			continue
		}
		updates = append(updates, models.CorrelationUpdate{
			ID:            id.ID,
			IdentityLabel: id.IdentityLabel,
			Confidence:    next,
			Status:        models.StatusPendingUpdate,
		})
	}
	if len(updates) == 0 {
		return 0, nil
	}

	if err := e.store.ApplyCorrelation(ctx, updates); err != nil {
		metrics.StoreErrors.WithLabelValues("update").Inc()
		return 0, fmt.Errorf("failed to apply aging updates: %w", err)
	}

	metrics.CorrelationUpdates.WithLabelValues("aging").Add(float64(len(updates)))
	return len(updates), nil
}

// agedConfidence maps a label's repetition count to confidence. The
// [2,5) band keeps the current value, which stops freshly inserted
// identities (born at 50) from flapping between tiers.
func agedConfidence(count, current int) int {
	switch {
	case count < 2:
		return 30
	case count < 5:
		return current
	case count < 10:
		return 75
	case count < 20:
		return 90
	default:
		return 100
	}
}

// identityRef is an identity observation with its beacon time parsed.
type identityRef struct {
	label string
	at    time.Time
}

// bindMeasurements scores settled measurement events against the
// identity context and attaches labels.
func (e *Engine) bindMeasurements(ctx context.Context, now time.Time) (int, error) {
	measurements, err := e.store.MeasurementsSettling(ctx,
		now.Add(-settlingOldest), now.Add(-settlingYoungest))
	if err != nil {
		metrics.StoreErrors.WithLabelValues("select").Inc()
		return 0, fmt.Errorf("failed to load settling measurements: %w", err)
	}
	if len(measurements) == 0 {
		return 0, nil
	}

	from := models.FormatEventTime(now.Add(-contextRadius))
	to := models.FormatEventTime(now.Add(contextRadius))
	identities, err := e.store.IdentitiesByEventTime(ctx, from, to)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("select").Inc()
		return 0, fmt.Errorf("failed to load identity context: %w", err)
	}

	refs := make([]identityRef, 0, len(identities))
	for _, id := range identities {
		at, err := models.ParseEventTime(id.EventTime)
		if err != nil {
			// Unparseable beacon time cannot enter distance math.
			e.logger.Warn("skipping identity with bad event time",
				logging.EventID(id.ID), logging.Error(err))
			continue
		}
		refs = append(refs, identityRef{label: id.IdentityLabel, at: at})
	}

	var updates []models.CorrelationUpdate
	for _, m := range measurements {
		t, err := models.ParseEventTime(m.EventTime)
		if err != nil {
			e.logger.Warn("skipping measurement with bad event time",
				logging.EventID(m.ID), logging.Error(err))
			continue
		}

		label, confidence := scoreMeasurement(t, m.IdentityLabel, refs)

		// An unchanged score is not a transition: writing it would
		// flag a synced row stale every cycle and redeliver forever.
		if label == m.IdentityLabel && confidence == m.Confidence {
			continue
		}
		updates = append(updates, models.CorrelationUpdate{
			ID:            m.ID,
			IdentityLabel: label,
			Confidence:    confidence,
			Status:        boundStatus(m.Status),
		})
	}
	if len(updates) == 0 {
		return 0, nil
	}

	if err := e.store.ApplyCorrelation(ctx, updates); err != nil {
		metrics.StoreErrors.WithLabelValues("update").Inc()
		return 0, fmt.Errorf("failed to apply binding updates: %w", err)
	}

	metrics.CorrelationUpdates.WithLabelValues("binding").Add(float64(len(updates)))
	return len(updates), nil
}

// scoreMeasurement computes a measurement's label and confidence from
// scratch against the identity context.
//
// Global bonus: +20 when exactly one distinct label appears within
// ±20s of the measurement's beacon time.
//
// Proximity bonus: candidates are identities within ±2s whose label
// does not conflict with an already-attached one. The closest candidate
// is found before the collision check; when the candidates carry
// exactly one distinct label, its distance picks the bonus (≤1s +50,
// otherwise +20) and the label is adopted. An empty or ambiguous
// window changes nothing.
func scoreMeasurement(t time.Time, attached string, refs []identityRef) (string, int) {
	label := attached
	confidence := 0

	globalLabels := make(map[string]struct{})
	for _, r := range refs {
		if absDuration(r.at.Sub(t)) <= globalRadius {
			globalLabels[r.label] = struct{}{}
		}
	}
	if len(globalLabels) == 1 {
		confidence += globalBonus
	}

	var (
		closest     identityRef
		closestDist time.Duration = proximityRadius + time.Second
		candidates  = make(map[string]struct{})
	)
	for _, r := range refs {
		d := absDuration(r.at.Sub(t))
		if d > proximityRadius {
			continue
		}
		if attached != "" && r.label != attached {
			continue
		}
		if d < closestDist {
			closest, closestDist = r, d
		}
		candidates[r.label] = struct{}{}
	}
	if len(candidates) == 1 {
		switch {
		case closestDist <= closeRadius:
			confidence += closeBonus
			label = closest.label
		case closestDist <= proximityRadius:
			confidence += nearBonus
			label = closest.label
		}
	}

	if confidence > maxConfidence {
		confidence = maxConfidence
	}
	return label, confidence
}

// boundStatus maps a measurement's current status to its post-binding
// status: anything the remote already saw becomes pending_update,
// anything it has not seen stays pending_create.
func boundStatus(s models.Status) models.Status {
	if s == models.StatusSynced {
		return models.StatusPendingUpdate
	}
	return s
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func (e *Engine) recordError(err error) {
	e.statsMu.Lock()
	e.stats.LastError = err.Error()
	e.statsMu.Unlock()
}

func (e *Engine) diagRow(ctx context.Context, level, message, details string) {
	if e.diag == nil {
		return
	}
	if err := e.diag.AppendLog(ctx, level, "correlation", message, details); err != nil {
		e.logger.Debug("diagnostic row not written", logging.Error(err))
	}
}
