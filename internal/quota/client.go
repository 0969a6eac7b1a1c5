package quota

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// QuotaStatus is the response shape of the subscription quota-status
// endpoint: quota type name -> usage numbers.
type QuotaStatus map[string]TypeUsage

type TypeUsage struct {
	CurrentUsage   float64 `json:"current_usage"`
	Limit          float64 `json:"limit"`
	PercentageUsed float64 `json:"percentage_used"`
}

// Client fetches quota status over HTTP with a bearer token.
type Client struct {
	base  string
	token string
	hc    *http.Client
}

func NewClient(base, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		hc:    &http.Client{Timeout: timeout},
	}
}

// QuotaStatus performs GET {base}/api/v1/subscription/quota-status. Non-2xx
// and malformed bodies are errors; the poller maps every error to a skipped
// cycle.
func (c *Client) QuotaStatus(ctx context.Context) (QuotaStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/subscription/quota-status", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("quota status: unexpected status %d", resp.StatusCode)
	}

	var out QuotaStatus
	dec := json.NewDecoder(io.LimitReader(resp.Body, 1<<20))
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("quota status: decode: %w", err)
	}
	return out, nil
}
