package steps

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ormasoftchile/chromedir/internal/schema"
)

// handleMockNetwork installs a glob-matched interception rule on the
// browser driver per spec.md §6.1.
func handleMockNetwork(ctx context.Context, deps *Deps, spec *schema.MockNetworkSpec) error {
	status := spec.Status
	if status == 0 {
		status = 200
	}
	delay := time.Duration(spec.DelayMS) * time.Millisecond
	return deps.Driver.AddMockRule(ctx, deps.Scope.Interpolate(spec.Pattern), status, spec.Body, delay)
}

// handleHTTPRequest performs a server-side HTTP call, outside the browser,
// used for seeding state in before-hook phase A (spec.md §4.3 step 2).
func handleHTTPRequest(ctx context.Context, deps *Deps, spec *schema.HTTPRequestSpec) (any, error) {
	if deps.HTTPLimiter != nil {
		if err := deps.HTTPLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("http_request: rate limit wait: %w", err)
		}
	}

	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}
	url := deps.Scope.Interpolate(spec.URL)
	body := deps.Scope.Interpolate(spec.Body)

	req, err := http.NewRequestWithContext(ctx, method, url, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("http_request: build request: %w", err)
	}
	for k, v := range spec.Headers {
		req.Header.Set(deps.Scope.Interpolate(k), deps.Scope.Interpolate(v))
	}

	resp, err := deps.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("http_request: %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("http_request: read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http_request: %s %s returned %d", method, url, resp.StatusCode)
	}

	return map[string]any{
		"status": resp.StatusCode,
		"body":   string(respBody),
	}, nil
}
