package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aerolink-systems/aerolink-agent/internal/models"
)

// Clock supplies row timestamps. The agent injects the offset-corrected
// pipeline clock; nil falls back to the host clock.
type Clock func() time.Time

// Postgres is the event store. Every operation is a short,
// self-contained call; concurrent loops coordinate only through the
// rows they read and write.
type Postgres struct {
	pool *pgxpool.Pool
	now  Clock
}

// New connects to PostgreSQL and verifies the connection.
func New(ctx context.Context, connString string, clock Clock) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Connection pool configuration
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if clock == nil {
		clock = time.Now
	}

	return &Postgres{pool: pool, now: clock}, nil
}

const eventColumns = `id, event_time, kind, identity_label, altitude, fuel_percent, confidence, status, created_at, updated_at`

// InsertEvents writes a batch of parsed events in one transaction and
// stamps CreatedAt/UpdatedAt on each.
func (p *Postgres) InsertEvents(ctx context.Context, events []*models.Event) error {
	if len(events) == 0 {
		return nil
	}

	query := `
		INSERT INTO beacon_events (id, event_time, kind, identity_label, altitude, fuel_percent, confidence, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	now := p.now()
	batch := &pgx.Batch{}
	for _, e := range events {
		e.CreatedAt = now
		e.UpdatedAt = now
		batch.Queue(query,
			e.ID, e.EventTime, string(e.Kind), e.IdentityLabel,
			e.Altitude, e.FuelPercent, e.Confidence, string(e.Status),
			e.CreatedAt, e.UpdatedAt,
		)
	}

	if err := p.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("failed to insert events: %w", err)
	}
	return nil
}

// SyncedIdentitiesSince returns identity events in the trailing aging
// window, newest arrivals included.
func (p *Postgres) SyncedIdentitiesSince(ctx context.Context, since time.Time) ([]*models.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM beacon_events
		WHERE kind = 'identity' AND status = 'synced' AND created_at >= $1
		ORDER BY created_at ASC
	`

	rows, err := p.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query synced identities: %w", err)
	}
	return collectEvents(rows)
}

// MeasurementsSettling returns measurement events whose arrival time
// falls inside the settling window, ordered by beacon time.
func (p *Postgres) MeasurementsSettling(ctx context.Context, from, to time.Time) ([]*models.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM beacon_events
		WHERE kind = 'measurement'
		  AND status IN ('pending_create', 'synced', 'pending_update')
		  AND created_at >= $1 AND created_at <= $2
		ORDER BY event_time ASC
	`

	rows, err := p.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query settling measurements: %w", err)
	}
	return collectEvents(rows)
}

// IdentitiesByEventTime returns identity events with beacon time in
// [from, to]. The text timestamp format orders chronologically.
func (p *Postgres) IdentitiesByEventTime(ctx context.Context, from, to string) ([]*models.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM beacon_events
		WHERE kind = 'identity' AND event_time >= $1 AND event_time <= $2
		ORDER BY event_time ASC
	`

	rows, err := p.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query identities by event time: %w", err)
	}
	return collectEvents(rows)
}

// ApplyCorrelation rewrites label, confidence and status for the given
// events in one transaction.
func (p *Postgres) ApplyCorrelation(ctx context.Context, updates []models.CorrelationUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	query := `
		UPDATE beacon_events
		SET identity_label = $1, confidence = $2, status = $3, updated_at = $4
		WHERE id = $5
	`

	now := p.now()
	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(query, u.IdentityLabel, u.Confidence, string(u.Status), now, u.ID)
	}

	if err := p.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("failed to apply correlation updates: %w", err)
	}
	return nil
}

// PendingDelivery returns events awaiting delivery, oldest first.
func (p *Postgres) PendingDelivery(ctx context.Context, limit int) ([]*models.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM beacon_events
		WHERE status IN ('pending_create', 'pending_update')
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := p.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	return collectEvents(rows)
}

// MarkSynced flips the given events to synced after the remote
// acknowledged them.
func (p *Postgres) MarkSynced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE beacon_events
		SET status = 'synced', updated_at = $1
		WHERE id = ANY($2)
	`

	if _, err := p.pool.Exec(ctx, query, p.now(), ids); err != nil {
		return fmt.Errorf("failed to mark events synced: %w", err)
	}
	return nil
}

// AppendLog writes a diagnostic row. Callers treat failures as best
// effort.
func (p *Postgres) AppendLog(ctx context.Context, level, component, message, details string) error {
	query := `
		INSERT INTO agent_logs (level, component, message, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := p.pool.Exec(ctx, query, level, component, message, details, p.now()); err != nil {
		return fmt.Errorf("failed to append log: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func collectEvents(rows pgx.Rows) ([]*models.Event, error) {
	defer rows.Close()

	events := []*models.Event{}
	for rows.Next() {
		e := &models.Event{}
		if err := rows.Scan(
			&e.ID, &e.EventTime, &e.Kind, &e.IdentityLabel,
			&e.Altitude, &e.FuelPercent, &e.Confidence, &e.Status,
			&e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return events, nil
}
