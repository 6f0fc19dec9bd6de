package imgw

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client talks to the public IMGW hydro API.
type Client struct {
	httpClient  *http.Client
	hydroURL    string
	warningsURL string
}

// NewClient builds a client with a bounded request timeout.
func NewClient(hydroURL, warningsURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		hydroURL:    strings.TrimRight(hydroURL, "/"),
		warningsURL: warningsURL,
	}
}

// Stations retrieves the station directory.
func (c *Client) Stations(ctx context.Context) ([]Station, error) {
	var stations []Station
	if err := c.getJSON(ctx, c.hydroURL, &stations); err != nil {
		return nil, fmt.Errorf("fetch station directory: %w", err)
	}
	return stations, nil
}

// LatestReading retrieves the most recent reading for one station. The
// upstream endpoint answers with an array whose first element is the latest
// reading; an empty array yields nil.
func (c *Client) LatestReading(ctx context.Context, stationID string) (*Reading, error) {
	var readings []Reading
	url := c.hydroURL + "/id/" + stationID
	if err := c.getJSON(ctx, url, &readings); err != nil {
		return nil, fmt.Errorf("fetch reading for station %s: %w", stationID, err)
	}
	if len(readings) == 0 {
		return nil, nil
	}
	return &readings[0], nil
}

// Warnings retrieves the current hydrological warning bulletins.
func (c *Client) Warnings(ctx context.Context) ([]Warning, error) {
	var warnings []Warning
	if err := c.getJSON(ctx, c.warningsURL, &warnings); err != nil {
		return nil, fmt.Errorf("fetch warnings: %w", err)
	}
	return warnings, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
