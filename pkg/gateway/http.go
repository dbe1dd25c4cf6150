package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	pkgerrors "github.com/owlscommerce/owls-backend/pkg/errors"
)

const (
	retryBase    = 500 * time.Millisecond
	retryMaxTrys = 3
)

// postJSON sends a JSON request and decodes the JSON response, retrying
// transport-level failures with fibonacci backoff. HTTP error statuses and
// exhausted retries surface as GATEWAY_UNAVAILABLE so callers can reschedule.
func postJSON(ctx context.Context, client *http.Client, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway request")
	}

	backoff := retry.WithMaxRetries(retryMaxTrys, retry.NewFibonacci(retryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return retry.RetryableError(fmt.Errorf("gateway returned %d", resp.StatusCode))
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("gateway returned %d", resp.StatusCode)
		}

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}
		return json.Unmarshal(raw, out)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "gateway call failed")
	}
	return nil
}
