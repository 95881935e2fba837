package source

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Client fetches raw WKT and station JSON from the transit open-data API and
// writes them into a FileSource directory. It runs strictly before any
// geometry stage: a fixed delay separates requests and rate-limit responses
// are retried with bounded exponential backoff.
type Client struct {
	baseURL    string
	token      string
	delay      time.Duration
	maxRetries int
	httpClient *http.Client
}

func NewClient(baseURL, token string, delay time.Duration, maxRetries int) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		delay:      delay,
		maxRetries: maxRetries,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchAll downloads the station list and one geometry blob per track id
// into dir using the FileSource layout.
func (c *Client) FetchAll(ctx context.Context, trackIDs []string, dir string) error {
	if err := os.MkdirAll(filepath.Join(dir, "geometry"), 0755); err != nil {
		return err
	}

	body, err := c.get(ctx, c.baseURL+"/stations")
	if err != nil {
		return fmt.Errorf("fetch stations: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stations.json"), body, 0644); err != nil {
		return err
	}

	for _, id := range trackIDs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.delay):
		}
		body, err := c.get(ctx, fmt.Sprintf("%s/geometry/%s", c.baseURL, id))
		if err != nil {
			return fmt.Errorf("fetch geometry %s: %w", id, err)
		}
		path := filepath.Join(dir, "geometry", fileToken(id)+".wkt")
		if err := os.WriteFile(path, body, 0644); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	backoff := c.delay
	if backoff <= 0 {
		backoff = time.Second
	}
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusOK {
			defer resp.Body.Close()
			return io.ReadAll(resp.Body)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= c.maxRetries {
			return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
		}
		log.Printf("rate limited by %s, retrying in %s", url, backoff)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
