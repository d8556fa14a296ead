package status

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aerolink-systems/aerolink-agent/internal/delivery"
	"github.com/aerolink-systems/aerolink-agent/internal/logging"
)

// failureLogEvery throttles the failure log to one WARNING per five
// missed reports.
const failureLogEvery = 5

// Config carries the reporter settings.
type Config struct {
	ClientID    int
	Version     string
	URL         string
	Interval    time.Duration
	BearerToken string
}

// Reporter periodically POSTs the aggregate snapshot to the remote
// status endpoint, signed the same way delivery batches are.
type Reporter struct {
	registry *Registry
	signer   *delivery.Signer
	cfg      Config
	now      func() time.Time
	startAt  time.Time
	client   *http.Client
	logger   *logging.Logger

	failed int
}

// NewReporter constructs a Reporter. now is the offset-corrected clock
// used for the payload timestamp; nil falls back to the wall clock.
func NewReporter(registry *Registry, signer *delivery.Signer, cfg Config, now func() time.Time, logger *logging.Logger) *Reporter {
	if now == nil {
		now = time.Now
	}
	return &Reporter{
		registry: registry,
		signer:   signer,
		cfg:      cfg,
		now:      now,
		startAt:  time.Now(),
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger.With(logging.Component("status")),
	}
}

// Run publishes every interval until the context is cancelled. The
// first report goes out after one full interval; there is nothing
// worth reporting at startup.
func (r *Reporter) Run(ctx context.Context) {
	r.logger.Info("status reporter started", logging.Endpoint(r.cfg.URL))

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("status reporter stopped")
			return
		case <-ticker.C:
			r.report(ctx)
		}
	}
}

func (r *Reporter) report(ctx context.Context) {
	payload, err := r.buildPayload()
	if err != nil {
		r.logger.Error("failed to build status payload", logging.Error(err))
		return
	}

	if err := r.send(ctx, payload); err != nil {
		r.failed++
		if r.failed%failureLogEvery == 0 {
			r.logger.Warn("status reports failing",
				logging.Attempt(r.failed), logging.Error(err))
		} else {
			r.logger.Debug("status report failed", logging.Error(err))
		}
		return
	}

	r.failed = 0
	r.logger.Debug("status published")
}

// buildPayload marshals the aggregate snapshot. Map marshaling gives
// deterministic key order, so the signature covers a canonical body.
func (r *Reporter) buildPayload() ([]byte, error) {
	payload, err := json.Marshal(map[string]any{
		"client_id":      r.cfg.ClientID,
		"version":        r.cfg.Version,
		"timestamp":      r.now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(r.startAt).Seconds()),
		"components":     r.registry.Snapshot(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal status payload: %w", err)
	}
	return payload, nil
}

func (r *Reporter) send(ctx context.Context, payload []byte) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+r.cfg.BearerToken)
	request.Header.Set("X-Signature", r.signer.SignHex(payload))

	resp, err := r.client.Do(request)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("endpoint status %d", resp.StatusCode)
	}
	return nil
}
