// Package weather fetches a one-line conditions snapshot from a wttr.in
// compatible endpoint. Lookups are best effort; callers treat a failure as
// "no snapshot", never as an error surfaced to the user.
package weather

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public wttr.in endpoint.
const DefaultBaseURL = "https://wttr.in"

// conditionsFormat asks for "<conditions> <temperature>" on one line.
const conditionsFormat = "%C+%t"

// Client queries current conditions for a city.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client. An empty baseURL selects the public endpoint. The
// timeout is short: a slow weather service must not stall a capture.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Current returns a one-line conditions string for city, e.g.
// "Partly cloudy +18°C".
func (c *Client) Current(ctx context.Context, city string) (string, error) {
	if strings.TrimSpace(city) == "" {
		return "", fmt.Errorf("weather: empty city")
	}

	u := c.BaseURL + "/" + url.PathEscape(city) + "?format=" + url.QueryEscape(conditionsFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("weather request for %s: %w", city, err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("weather lookup for %s: %w", city, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("weather lookup for %s: status %d", city, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", fmt.Errorf("read weather response: %w", err)
	}

	conditions := strings.TrimSpace(string(body))
	if conditions == "" {
		return "", fmt.Errorf("weather lookup for %s: empty response", city)
	}
	return conditions, nil
}
