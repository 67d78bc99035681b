package arena

import (
	"context"
	"fmt"
	"image"
	"io"
	"log"
	"net/http"
	"time"
)

const (
	// DefaultSnapshotTimeout bounds a single snapshot request
	DefaultSnapshotTimeout = 5 * time.Second

	// DefaultSnapshotRetries is the number of attempts per snapshot
	DefaultSnapshotRetries = 3

	defaultSnapshotBackoff = 200 * time.Millisecond

	// maxSnapshotBytes caps the response body
	maxSnapshotBytes = 16 << 20
)

// SnapshotOption configures FetchFrame
type SnapshotOption func(*snapshotConfig)

type snapshotConfig struct {
	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
	client      *http.Client
}

func defaultSnapshotConfig() snapshotConfig {
	return snapshotConfig{
		timeout:     DefaultSnapshotTimeout,
		maxRetries:  DefaultSnapshotRetries,
		baseBackoff: defaultSnapshotBackoff,
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) SnapshotOption {
	return func(c *snapshotConfig) { c.timeout = d }
}

// WithMaxRetries sets the number of attempts
func WithMaxRetries(n int) SnapshotOption {
	return func(c *snapshotConfig) { c.maxRetries = n }
}

// WithBaseBackoff sets the delay before the second attempt; it doubles after
// every further failure.
func WithBaseBackoff(d time.Duration) SnapshotOption {
	return func(c *snapshotConfig) { c.baseBackoff = d }
}

// WithHTTPClient overrides the default HTTP client
func WithHTTPClient(client *http.Client) SnapshotOption {
	return func(c *snapshotConfig) { c.client = client }
}

// FetchFrame downloads and decodes one camera snapshot. Transport failures
// and non-200 responses are retried; an undecodable image is not.
func FetchFrame(ctx context.Context, url string, opts ...SnapshotOption) (image.Image, error) {
	if url == "" {
		return nil, fmt.Errorf("fetch frame: snapshot URL is empty")
	}

	cfg := defaultSnapshotConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxRetries < 1 {
		cfg.maxRetries = 1
	}
	client := cfg.client
	if client == nil {
		client = &http.Client{Timeout: cfg.timeout}
	}

	var lastErr error
	backoff := cfg.baseBackoff
	for attempt := range cfg.maxRetries {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch frame: %w", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		body, err := doFetch(ctx, client, url)
		if err != nil {
			lastErr = err
			continue
		}

		img, err := DecodeFrame(body)
		if err != nil {
			return nil, fmt.Errorf("fetch frame: %w", err)
		}
		return img, nil
	}

	return nil, fmt.Errorf("fetch frame: all %d attempts failed: %w", cfg.maxRetries, lastErr)
}

func doFetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "image/png, image/jpeg, image/bmp, image/tiff")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP GET %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	return body, nil
}

// PollSnapshots fetches a frame from url every interval and hands it to
// frames until ctx is done. Failures are reported through frames with a
// nil image, matching the MQTT frame callback.
func PollSnapshots(ctx context.Context, url string, interval time.Duration, frames FrameHandler, opts ...SnapshotOption) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[SNAPSHOT] polling %s every %v", url, interval)
	for {
		img, err := FetchFrame(ctx, url, opts...)
		if ctx.Err() != nil {
			return
		}
		frames(url, img, err)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
