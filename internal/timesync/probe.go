package timesync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Probe measures the skew between the host clock and an HTTP time
// source using the response Date header. The local reference point is
// the midpoint of the request round trip, which bounds the error by
// half the RTT on top of the header's one second resolution. A
// positive result means the source is ahead of the host.
func Probe(ctx context.Context, client *http.Client, url string) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to reach time source: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	rtt := time.Since(start)

	date := resp.Header.Get("Date")
	if date == "" {
		return 0, fmt.Errorf("time source %s returned no Date header", url)
	}
	remote, err := http.ParseTime(date)
	if err != nil {
		return 0, fmt.Errorf("failed to parse Date header %q: %w", date, err)
	}

	local := start.Add(rtt / 2)
	return remote.Sub(local), nil
}
