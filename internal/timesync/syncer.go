package timesync

import (
	"context"
	"net/http"
	"time"

	"github.com/aerolink-systems/aerolink-agent/internal/logging"
)

// Syncer periodically probes the configured time source and applies
// the measured skew to the clock when it exceeds the threshold.
type Syncer struct {
	clock     *Clock
	client    *http.Client
	url       string
	interval  time.Duration
	threshold time.Duration
	logger    *logging.Logger
}

func NewSyncer(clock *Clock, url string, interval, threshold time.Duration, logger *logging.Logger) *Syncer {
	return &Syncer{
		clock:     clock,
		client:    &http.Client{Timeout: 10 * time.Second},
		url:       url,
		interval:  interval,
		threshold: threshold,
		logger:    logger.With(logging.Component("timesync")),
	}
}

// Run probes once immediately, then re-probes on the configured
// interval. A zero interval means a single startup probe.
func (s *Syncer) Run(ctx context.Context) {
	s.probe(ctx)

	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probe(ctx)
		}
	}
}

func (s *Syncer) probe(ctx context.Context) {
	skew, err := Probe(ctx, s.client, s.url)
	if err != nil {
		s.logger.Warn("time probe failed",
			logging.Endpoint(s.url),
			logging.Error(err))
		return
	}

	abs := skew
	if abs < 0 {
		abs = -abs
	}

	if abs <= s.threshold {
		if s.clock.Offset() != 0 {
			s.logger.Info("host clock back within threshold, clearing offset",
				logging.Duration(skew.Milliseconds()))
			s.clock.SetOffset(0)
		}
		return
	}

	s.clock.SetOffset(skew)
	s.logger.Warn("host clock skewed, correcting pipeline time",
		logging.Endpoint(s.url),
		logging.Duration(skew.Milliseconds()))
}
