// Package sdk provides the Propply compliance API client.
//
// This is the library integration back ends embed to run compliance
// checks, read stored property data, and manage webhook subscriptions
// without hand-rolling HTTP calls.
//
// Quick Start:
//
//	client := sdk.NewClient(sdk.Config{
//	    BaseURL: "https://compliance.propply.example.com",
//	    APIKey:  os.Getenv("PROPPLY_API_KEY"),
//	})
//
//	result, err := client.RunCompliance(ctx, sdk.RunRequest{
//	    Address: "1662 Park Avenue",
//	    Borough: "Manhattan",
//	})
//	if err == nil {
//	    fmt.Printf("score %.1f risk %s\n",
//	        result.Report.OverallComplianceScore, result.Report.RiskLevel)
//	}
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Config holds the Propply SDK configuration.
type Config struct {
	// BaseURL is the compliance API endpoint (required)
	// Examples: "https://compliance.propply.example.com", "http://localhost:8080"
	BaseURL string

	// APIKey authenticates requests ("ppy_..."), sent as a Bearer token.
	// Required for webhook management when the server enforces keys.
	APIKey string

	// Timeout for API calls. A run can take up to the server's run
	// deadline, so the default is generous (180s).
	Timeout time.Duration

	// OnPartial is called when a run returns a partial report — the
	// server's deadline cut off some domains before they finished.
	OnPartial func(result *RunResult)
}

// Client is the Propply compliance API client.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new Propply SDK client.
//
//	client := sdk.NewClient(sdk.Config{
//	    BaseURL: "http://localhost:8080",
//	    APIKey:  os.Getenv("PROPPLY_API_KEY"),
//	})
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 180 * time.Second
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// APIError is a non-2xx response from the compliance API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("propply-sdk: api error %d: %s", e.StatusCode, e.Message)
}

// RunCompliance runs the full pipeline for one address. This is the
// primary integration point.
//
// Example:
//
//	result, err := client.RunCompliance(ctx, sdk.RunRequest{
//	    Address:    "1662 Park Avenue",
//	    Borough:    "Manhattan",
//	    PropertyID: "prop-42",
//	    Persist:    true,
//	})
//	if err != nil {
//	    var apiErr *sdk.APIError
//	    if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
//	        // address could not be resolved
//	    }
//	}
func (c *Client) RunCompliance(ctx context.Context, req RunRequest) (*RunResult, error) {
	var result RunResult
	if err := c.do(ctx, "POST", "/api/v1/compliance", req, &result); err != nil {
		return nil, err
	}

	if result.Report != nil && result.Report.DataSources == DataSourcesPartial {
		if c.config.OnPartial != nil {
			c.config.OnPartial(&result)
		}
	}

	return &result, nil
}

// SearchProperty resolves an address to its NYC identifiers without
// running a full compliance check.
func (c *Client) SearchProperty(ctx context.Context, address, borough string) (*PropertyIdentifiers, error) {
	req := map[string]string{"address": address}
	if borough != "" {
		req["borough"] = borough
	}
	var ids PropertyIdentifiers
	if err := c.do(ctx, "POST", "/api/v1/search", req, &ids); err != nil {
		return nil, err
	}
	return &ids, nil
}

// GetPropertyCompliance fetches the stored data package for a property
// previously persisted via RunCompliance or SyncProperty.
func (c *Client) GetPropertyCompliance(ctx context.Context, propertyID string) (*DataPackage, error) {
	path := "/api/v1/properties/" + url.PathEscape(propertyID) + "/compliance"
	var pkg DataPackage
	if err := c.do(ctx, "GET", path, nil, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// SyncProperty runs the pipeline and persists the result under the
// given property id.
func (c *Client) SyncProperty(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	var result SyncResult
	if err := c.do(ctx, "POST", "/api/v1/sync", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RegisterWebhook subscribes a receiver URL to run events. Keep the
// returned ID — it is the handle for UnregisterWebhook.
func (c *Client) RegisterWebhook(ctx context.Context, req WebhookRequest) (*Webhook, error) {
	var hook Webhook
	if err := c.do(ctx, "POST", "/api/v1/webhooks", req, &hook); err != nil {
		return nil, err
	}
	return &hook, nil
}

// ListWebhooks returns the current subscriptions.
func (c *Client) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	var resp struct {
		Webhooks []Webhook `json:"webhooks"`
	}
	if err := c.do(ctx, "GET", "/api/v1/webhooks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Webhooks, nil
}

// UnregisterWebhook removes a subscription by id.
func (c *Client) UnregisterWebhook(ctx context.Context, id string) error {
	return c.do(ctx, "DELETE", "/api/v1/webhooks/"+url.PathEscape(id), nil, nil)
}

// do sends one API request and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var bodyReader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("propply-sdk: failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("propply-sdk: failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("propply-sdk: api request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("propply-sdk: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("propply-sdk: failed to parse response: %w", err)
	}
	return nil
}
