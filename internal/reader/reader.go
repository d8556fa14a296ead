// Package reader owns the TCP connection to the decoder. It reconnects
// on any failure, frames the byte stream into lines, parses recognized
// beacon lines, and flushes the resulting events to the store on a
// fixed cadence independent of the read cadence.
package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/aerolink-systems/aerolink-agent/internal/logging"
	"github.com/aerolink-systems/aerolink-agent/internal/metrics"
	"github.com/aerolink-systems/aerolink-agent/internal/models"
	"github.com/aerolink-systems/aerolink-agent/internal/parser"
)

// shutdownFlushTimeout bounds the final flush once the run context is
// already cancelled.
const shutdownFlushTimeout = 5 * time.Second

// EventStore is the slice of the store the reader needs.
type EventStore interface {
	InsertEvents(ctx context.Context, events []*models.Event) error
}

// DiagLog receives best-effort diagnostic rows.
type DiagLog interface {
	AppendLog(ctx context.Context, level, component, message, details string) error
}

// Config carries the connection and buffering settings.
type Config struct {
	Host           string
	Port           int
	ConnectTimeout time.Duration
	ReconnectDelay time.Duration
	BufferLimit    int
	FlushInterval  time.Duration
}

// Stats is a point-in-time snapshot for the status reporter.
type Stats struct {
	Connected      bool   `json:"connected"`
	TotalPersisted int64  `json:"total_persisted"`
	LastFlushSize  int    `json:"last_flush_size"`
	BufferDepth    int    `json:"buffer_depth"`
	PendingEvents  int    `json:"pending_events"`
	Reconnects     int64  `json:"reconnects"`
	LastError      string `json:"last_error,omitempty"`
}

// Reader runs the dial loop and the flush loop.
type Reader struct {
	cfg    Config
	store  EventStore
	diag   DiagLog
	now    func() time.Time
	logger *logging.Logger

	// everConnected distinguishes first connect from reconnects; only
	// the read goroutine touches it.
	everConnected bool

	pendingMu sync.Mutex
	pending   []*models.Event

	statsMu sync.RWMutex
	stats   Stats
}

// New constructs a Reader. now is the offset-corrected clock used to
// stamp event times; nil falls back to the wall clock.
func New(cfg Config, store EventStore, diag DiagLog, now func() time.Time, logger *logging.Logger) *Reader {
	if now == nil {
		now = time.Now
	}
	return &Reader{
		cfg:    cfg,
		store:  store,
		diag:   diag,
		now:    now,
		logger: logger.With(logging.Component("reader")),
	}
}

// Run reads and flushes until the context is cancelled. The in-flight
// flush completes before Run returns, so parsed events are not lost on
// an orderly shutdown.
func (r *Reader) Run(ctx context.Context) {
	r.logger.Info("stream reader started",
		logging.Endpoint(r.address()))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.readLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		r.flushLoop(ctx)
	}()
	wg.Wait()

	r.logger.Info("stream reader stopped")
}

// Stats returns a copy of the current counters.
func (r *Reader) Stats() Stats {
	r.statsMu.RLock()
	defer r.statsMu.RUnlock()
	return r.stats
}

func (r *Reader) address() string {
	return net.JoinHostPort(r.cfg.Host, strconv.Itoa(r.cfg.Port))
}

// readLoop dials, consumes the connection until it breaks, and repeats.
func (r *Reader) readLoop(ctx context.Context) {
	for {
		conn, err := r.dial(ctx)
		if err != nil {
			return
		}

		r.consume(ctx, conn)
		conn.Close()

		r.setConnected(false)
		metrics.ReaderConnected.Set(0)

		if !sleepCtx(ctx, r.cfg.ReconnectDelay) {
			return
		}
	}
}

// dial retries until it has a connection or the context ends. Each
// successful (re)connection is logged exactly once; failed attempts
// stay at debug so a decoder outage does not flood the log.
func (r *Reader) dial(ctx context.Context) (net.Conn, error) {
	addr := r.address()
	dialer := net.Dialer{Timeout: r.cfg.ConnectTimeout}

	for {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			r.connected()
			r.logger.Info("connected to decoder", logging.Endpoint(addr))
			r.diagRow(ctx, "info", "connected to decoder", addr)
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		r.logger.Debug("decoder unreachable, retrying",
			logging.Endpoint(addr), logging.Error(err))
		r.setLastError(err)

		if !sleepCtx(ctx, r.cfg.ReconnectDelay) {
			return nil, ctx.Err()
		}
	}
}

func (r *Reader) connected() {
	metrics.ReaderConnected.Set(1)

	r.statsMu.Lock()
	r.stats.Connected = true
	if r.everConnected {
		r.stats.Reconnects++
		metrics.Reconnects.Inc()
	}
	r.statsMu.Unlock()

	r.everConnected = true
}

// consume reads the connection until it errors. The accumulation
// buffer starts empty on every connection: bytes framed before a
// reconnect are unrecoverable and must not be mixed with new data.
func (r *Reader) consume(ctx context.Context, conn net.Conn) {
	// Reads have no deadline (an idle decoder is indistinguishable
	// from an idle pipeline), so cancellation unblocks them by
	// closing the connection.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var acc []byte
	buf := make([]byte, 4096)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			acc = r.ingest(ctx, append(acc, buf[:n]...))
		}
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Warn("decoder connection lost", logging.Error(err))
				r.diagRow(ctx, "warning", "decoder connection lost", err.Error())
				r.setLastError(err)
			}
			return
		}
	}
}

// ingest splits complete lines out of the accumulation buffer and
// hands each to the parser, then enforces the size cap on whatever
// unterminated tail remains.
func (r *Reader) ingest(ctx context.Context, acc []byte) []byte {
	for {
		i := bytes.IndexByte(acc, '\n')
		if i < 0 {
			break
		}
		line := string(acc[:i])
		acc = acc[i+1:]
		r.handleLine(line)
	}

	if r.cfg.BufferLimit > 0 && len(acc) > r.cfg.BufferLimit {
		// A newline-free flood. Dropping the buffer keeps the reader
		// alive at the cost of the bytes already accumulated.
		r.logger.Warn("line buffer overflow, dropping buffered bytes",
			logging.Count(len(acc)))
		r.diagRow(ctx, "warning", "line buffer overflow",
			fmt.Sprintf("%d bytes dropped", len(acc)))
		acc = nil
	}

	metrics.BufferDepth.Set(float64(len(acc)))
	r.statsMu.Lock()
	r.stats.BufferDepth = len(acc)
	r.statsMu.Unlock()

	return acc
}

// handleLine parses one complete line and queues the event for the
// next flush. Malformed beacon lines are expected noise: warn and drop.
func (r *Reader) handleLine(line string) {
	event, err := parser.ParseLine(line, r.now())
	if err != nil {
		if errors.Is(err, parser.ErrUnrecognized) {
			return
		}
		metrics.ParseDiscards.Inc()
		r.logger.Warn("discarding malformed beacon line", logging.Error(err))
		return
	}

	metrics.EventsParsed.WithLabelValues(string(event.Kind)).Inc()

	r.pendingMu.Lock()
	r.pending = append(r.pending, event)
	depth := len(r.pending)
	r.pendingMu.Unlock()

	r.statsMu.Lock()
	r.stats.PendingEvents = depth
	r.statsMu.Unlock()
}

// flushLoop persists queued events every flush interval and once more
// on shutdown.
func (r *Reader) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
			r.flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			r.flush(ctx)
		}
	}
}

// flush writes all queued events in one batch insert. On failure the
// batch goes back to the front of the queue so insertion order is
// preserved for the retry.
func (r *Reader) flush(ctx context.Context) {
	r.pendingMu.Lock()
	batch := r.pending
	r.pending = nil
	r.pendingMu.Unlock()

	if len(batch) == 0 {
		return
	}

	if err := r.store.InsertEvents(ctx, batch); err != nil {
		metrics.FlushFailures.Inc()
		metrics.StoreErrors.WithLabelValues("insert").Inc()
		r.logger.Warn("flush failed, retaining events",
			logging.Count(len(batch)), logging.Error(err))
		r.diagRow(ctx, "warning", "flush failed", err.Error())
		r.setLastError(err)

		r.pendingMu.Lock()
		r.pending = append(batch, r.pending...)
		depth := len(r.pending)
		r.pendingMu.Unlock()

		r.statsMu.Lock()
		r.stats.PendingEvents = depth
		r.statsMu.Unlock()
		return
	}

	metrics.EventsPersisted.Add(float64(len(batch)))

	r.pendingMu.Lock()
	depth := len(r.pending)
	r.pendingMu.Unlock()

	r.statsMu.Lock()
	r.stats.TotalPersisted += int64(len(batch))
	r.stats.LastFlushSize = len(batch)
	r.stats.PendingEvents = depth
	r.statsMu.Unlock()

	r.logger.Debug("flushed events", logging.Count(len(batch)))
}

func (r *Reader) setConnected(connected bool) {
	r.statsMu.Lock()
	r.stats.Connected = connected
	r.statsMu.Unlock()
}

func (r *Reader) setLastError(err error) {
	r.statsMu.Lock()
	r.stats.LastError = err.Error()
	r.statsMu.Unlock()
}

func (r *Reader) diagRow(ctx context.Context, level, message, details string) {
	if r.diag == nil || ctx.Err() != nil {
		return
	}
	if err := r.diag.AppendLog(ctx, level, "reader", message, details); err != nil {
		r.logger.Debug("diagnostic row not written", logging.Error(err))
	}
}

// sleepCtx waits d or until the context ends, reporting whether the
// full wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
