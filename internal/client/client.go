// Package client provides an HTTP client for the matchmaker REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/evcraddock/matchmaker/internal/investor"
	"github.com/evcraddock/matchmaker/internal/ledger"
	"github.com/evcraddock/matchmaker/internal/listing"
	"github.com/evcraddock/matchmaker/internal/match"
	"github.com/evcraddock/matchmaker/internal/notify"
)

// Client is an HTTP client for the matchmaker API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// InvestorResponse is the response from PUT /api/investors/{id}.
type InvestorResponse struct {
	Investor      *investor.Profile `json:"investor"`
	LedgerReset   int64             `json:"ledger_reset"`
	Notifications *notify.Summary   `json:"notifications,omitempty"`
	NotifyError   string            `json:"notify_error,omitempty"`
}

// ListingResponse is the response from PUT /api/properties/{id} and its
// status endpoint.
type ListingResponse struct {
	Listing       *listing.Listing `json:"listing"`
	Notifications *notify.Summary  `json:"notifications,omitempty"`
	NotifyError   string           `json:"notify_error,omitempty"`
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// PropertyMatches ranks investors for a property. Zero limit returns all.
func (c *Client) PropertyMatches(ctx context.Context, id string, limit int) ([]match.Match, error) {
	var matches []match.Match
	if err := c.do(ctx, http.MethodGet, matchesPath("/api/properties/", id, limit), nil, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}

// InvestorMatches ranks properties for an investor. Zero limit returns all.
func (c *Client) InvestorMatches(ctx context.Context, id string, limit int) ([]match.Match, error) {
	var matches []match.Match
	if err := c.do(ctx, http.MethodGet, matchesPath("/api/investors/", id, limit), nil, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}

func matchesPath(prefix, id string, limit int) string {
	path := prefix + url.PathEscape(id) + "/matches"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	return path
}

// NotifyProperty runs notifications for a property.
func (c *Client) NotifyProperty(ctx context.Context, id string) (notify.Summary, error) {
	var s notify.Summary
	err := c.do(ctx, http.MethodPost, "/api/properties/"+url.PathEscape(id)+"/notify", nil, &s)
	return s, err
}

// NotifyInvestor runs notifications for an investor.
func (c *Client) NotifyInvestor(ctx context.Context, id string) (notify.Summary, error) {
	var s notify.Summary
	err := c.do(ctx, http.MethodPost, "/api/investors/"+url.PathEscape(id)+"/notify", nil, &s)
	return s, err
}

// PutInvestor creates or replaces an investor profile. A profile without an
// ID is created with a generated one.
func (c *Client) PutInvestor(ctx context.Context, p *investor.Profile) (*InvestorResponse, error) {
	method, path := http.MethodPut, "/api/investors/"+url.PathEscape(p.ID)
	if p.ID == "" {
		method, path = http.MethodPost, "/api/investors"
	}
	var resp InvestorResponse
	if err := c.do(ctx, method, path, p, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PutListing creates or replaces a listing.
func (c *Client) PutListing(ctx context.Context, l *listing.Listing) (*ListingResponse, error) {
	method, path := http.MethodPut, "/api/properties/"+url.PathEscape(l.ID)
	if l.ID == "" {
		method, path = http.MethodPost, "/api/properties"
	}
	var resp ListingResponse
	if err := c.do(ctx, method, path, l, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetListingStatus moves a listing to a new status.
func (c *Client) SetListingStatus(ctx context.Context, id string, status listing.Status) (*ListingResponse, error) {
	body := map[string]string{"status": string(status)}
	var resp ListingResponse
	if err := c.do(ctx, http.MethodPut, "/api/properties/"+url.PathEscape(id)+"/status", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ledger lists notification records.
func (c *Client) Ledger(ctx context.Context, f ledger.Filter) ([]ledger.Record, error) {
	q := url.Values{}
	if f.InvestorID != "" {
		q.Set("investor", f.InvestorID)
	}
	if f.PropertyID != "" {
		q.Set("property", f.PropertyID)
	}
	path := "/api/ledger"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var records []ledger.Record
	if err := c.do(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ResetInvestorLedger deletes an investor's notification records.
func (c *Client) ResetInvestorLedger(ctx context.Context, id string) (int64, error) {
	var resp struct {
		Removed int64 `json:"removed"`
	}
	if err := c.do(ctx, http.MethodDelete, "/api/investors/"+url.PathEscape(id)+"/ledger", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

// do executes a request with an optional JSON body and decodes the response.
func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Warn("closing response body", "error", cerr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("server error: %s", http.StatusText(resp.StatusCode))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
