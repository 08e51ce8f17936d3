package sync

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"picking-tracker-backend/internal/feed"
	"picking-tracker-backend/internal/model"
	"picking-tracker-backend/internal/store"
)

// Client talks to the picking tracker API with a session cookie. It is the
// Persister used by the Editor and the event source used by the Listener.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the given base URL (no trailing slash).
func NewClient(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Jar: jar},
	}, nil
}

// apiError decodes the {"error": ...} body the API returns on failure.
func apiError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err != nil || body.Error == "" {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return fmt.Errorf("%s", body.Error)
}

// Login authenticates and stores the session cookie for later calls.
func (c *Client) Login(ctx context.Context, username, password string) error {
	payload, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/session", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

// LoadResult is the reconciled view of one run.
type LoadResult struct {
	Run   model.Run          `json:"run"`
	Title string             `json:"title"`
	Lines []store.LineRecord `json:"lines"`
}

// LoadLines runs reconciliation for a date and weekday and returns the full
// line set.
func (c *Client) LoadLines(ctx context.Context, date string, weekday int) (LoadResult, error) {
	url := fmt.Sprintf("%s/api/lines?date=%s&weekday=%d", c.base, date, weekday)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return LoadResult{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return LoadResult{}, fmt.Errorf("load request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return LoadResult{}, apiError(resp)
	}

	var result LoadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return LoadResult{}, fmt.Errorf("failed to decode lines: %w", err)
	}
	return result, nil
}

// UpdateLine persists a partial patch for one line. Implements Persister.
func (c *Client) UpdateLine(ctx context.Context, id string, patch store.LinePatch) (store.LineRecord, error) {
	payload, err := json.Marshal(map[string]any{"id": id, "patch": patch})
	if err != nil {
		return store.LineRecord{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/update-line", bytes.NewReader(payload))
	if err != nil {
		return store.LineRecord{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return store.LineRecord{}, fmt.Errorf("update request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return store.LineRecord{}, apiError(resp)
	}

	var body struct {
		OK   bool             `json:"ok"`
		Data store.LineRecord `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return store.LineRecord{}, fmt.Errorf("failed to decode update response: %w", err)
	}
	return body.Data, nil
}

// Feed subscribes to the change feed for one run. Events arrive on the
// returned channel until ctx is cancelled or the stream ends, after which
// the channel is closed. Keepalive frames are filtered out.
func (c *Client) Feed(ctx context.Context, runID string) (<-chan feed.LineEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/feed?run_id="+runID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, apiError(resp)
	}

	events := make(chan feed.LineEvent, 16)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		readSSE(resp.Body, events)
	}()
	return events, nil
}

// readSSE parses a text/event-stream body into line events.
func readSSE(r io.Reader, out chan<- feed.LineEvent) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event == feed.LineEventName && data != "" {
				var evt feed.LineEvent
				if err := json.Unmarshal([]byte(data), &evt); err != nil {
					log.Printf("sync: bad feed payload: %v", err)
				} else {
					out <- evt
				}
			}
			event, data = "", ""
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}
