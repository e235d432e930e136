package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	tperrors "github.com/chazuruo/tavernaplayer/internal/errors"
)

const (
	jsonMIME   = "application/json"
	binaryMIME = "application/octet-stream"
)

// statusError reports a response outside the 2xx range.
type statusError int

func (e statusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", int(e), http.StatusText(int(e)))
}

// do sends one authenticated request and returns the response body.
// A non-nil payload is sent as JSON. The returned status is 0 when no
// complete response arrived; a non-2xx status comes with a statusError.
func (c *Client) do(ctx context.Context, method, location string, payload any, accept string) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, location, body)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", accept)
	if accept == jsonMIME {
		req.Header.Set("Content-Type", jsonMIME)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("portal request failed",
			slog.String("method", method),
			slog.String("url", location),
			slog.String("error", err.Error()),
		)
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("portal request",
		slog.String("method", method),
		slog.String("url", location),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(data)),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return data, resp.StatusCode, statusError(resp.StatusCode)
	}
	return data, resp.StatusCode, nil
}

// failure wraps a failed call from do in a PortalError matching sentinel.
// A rejected status is reported on its own; any other cause is kept in the
// chain behind the sentinel.
func failure(op, id string, sentinel error, status int, cause error) error {
	var se statusError
	if errors.As(cause, &se) {
		return &tperrors.PortalError{Op: op, ID: id, Err: sentinel, Status: status}
	}
	return &tperrors.PortalError{Op: op, ID: id, Err: fmt.Errorf("%w: %w", sentinel, cause), Status: status}
}
