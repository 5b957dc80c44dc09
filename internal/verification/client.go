package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// providerTimeout bounds every outbound provider call. A timeout surfaces as
// a transport error and is therefore retryable, never a firm rejection.
const providerTimeout = 30 * time.Second

// apiClient is the thin HTTP layer shared by network-backed adapters
type apiClient struct {
	baseURL string
	headers map[string]string
	client  *http.Client
}

func newAPIClient(baseURL string, headers map[string]string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		headers: headers,
		client:  &http.Client{Timeout: providerTimeout},
	}
}

// doJSON sends a JSON request and returns the status code and raw body.
// Network failures and 5xx responses come back as errors so the caller's
// retry policy can re-attempt them; any other status is handed back for the
// adapter to interpret, since a 4xx usually carries a firm provider verdict.
func (a *apiClient) doJSON(ctx context.Context, method, path string, payload interface{}) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range a.headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return resp.StatusCode, respBody, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return resp.StatusCode, respBody, nil
}

// rawJSON decodes a provider payload into the audit map stored on the record
func rawJSON(body []byte) map[string]interface{} {
	var m map[string]interface{}
	if err := json.Unmarshal(body, &m); err != nil {
		return map[string]interface{}{"raw": string(body)}
	}
	return m
}

// parseProviderDate parses the ISO date format shared by the providers
func parseProviderDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}
