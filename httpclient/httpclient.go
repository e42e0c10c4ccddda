// Package httpclient contains the remote step clients the saga calls into:
// the inventory service and the payment service. Both speak JSON over HTTP
// and report failures through an {error} body on non-2xx responses.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds every remote step call. The saga awaits each call
// synchronously, so a hung downstream would otherwise stall the whole run.
const DefaultTimeout = 10 * time.Second

// StatusError is returned when a downstream service answers with a non-2xx
// status. Message carries the service's own error description when the
// response body contains one.
type StatusError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
}

// errorBody is the error envelope the downstream services use
type errorBody struct {
	Error string `json:"error"`
}

// postJSON sends body as JSON to url and interprets the response: 2xx is
// success, anything else becomes a StatusError carrying the service's
// error message when present.
func postJSON(ctx context.Context, client *http.Client, service, url string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", service, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", service, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", service, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil
	}

	statusErr := &StatusError{Service: service, StatusCode: resp.StatusCode}

	var envelope errorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&envelope); err == nil {
		statusErr.Message = envelope.Error
	}

	return statusErr
}
