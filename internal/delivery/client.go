package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client posts signed batches to the remote collection endpoint.
type Client struct {
	url        string
	bearer     string
	signer     *Signer
	httpClient *http.Client
}

// NewClient constructs a new Client.
func NewClient(url, bearerToken string, signer *Signer, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		bearer: bearerToken,
		signer: signer,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send posts the payload with bearer and signature headers. Anything
// other than a 2xx response is an error; the caller decides retry.
func (c *Client) Send(ctx context.Context, payload []byte) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+c.bearer)
	request.Header.Set("X-Signature", c.signer.SignBase64(payload))

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
