// Package places finds a representative photo for a place name using the Foursquare
// Places API.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.foursquare.com/v3"
	defaultTimeout = 5 * time.Second

	photoSize = "300x300"
)

type Config struct {
	APIKey  string
	BaseURL string
	// Timeout applies to each of the two requests of a lookup.
	Timeout time.Duration
}

type Client struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	http    *http.Client
}

func NewClient(c Config) *Client {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}

	return &Client{
		apiKey:  c.APIKey,
		baseURL: strings.TrimSuffix(c.BaseURL, "/"),
		timeout: c.Timeout,
		http:    &http.Client{Timeout: c.Timeout},
	}
}

type searchResponse struct {
	Results []struct {
		FsqID string `json:"fsq_id"`
	} `json:"results"`
}

type photo struct {
	Prefix string `json:"prefix"`
	Suffix string `json:"suffix"`
}

// Lookup returns the URL of a photo of the best place match for term. Any failure is
// logged and reported as ok == false; an image is never required.
func (c *Client) Lookup(ctx context.Context, term string) (string, bool) {
	term = strings.TrimSpace(term)
	if c.apiKey == "" || term == "" {
		return "", false
	}

	id, err := c.search(ctx, term)
	if err != nil {
		slog.WarnContext(ctx, "Place search failed", "term", term, "error", err)
		return "", false
	}
	if id == "" {
		return "", false
	}

	u, err := c.photo(ctx, id)
	if err != nil {
		slog.WarnContext(ctx, "Place photo lookup failed", "term", term, "fsq_id", id, "error", err)
		return "", false
	}
	return u, u != ""
}

func (c *Client) search(ctx context.Context, term string) (string, error) {
	q := url.Values{}
	q.Set("query", term+" landmark location")
	q.Set("limit", "1")

	var resp searchResponse
	if err := c.get(ctx, "/places/search?"+q.Encode(), &resp); err != nil {
		return "", fmt.Errorf("search: %w", err)
	}
	if len(resp.Results) == 0 {
		return "", nil
	}
	return resp.Results[0].FsqID, nil
}

func (c *Client) photo(ctx context.Context, id string) (string, error) {
	var photos []photo
	if err := c.get(ctx, "/places/"+url.PathEscape(id)+"/photos?limit=1", &photos); err != nil {
		return "", fmt.Errorf("photos: %w", err)
	}
	if len(photos) == 0 {
		return "", nil
	}
	return photos[0].Prefix + photoSize + photos[0].Suffix, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
