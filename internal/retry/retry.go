// internal/retry/retry.go
package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// StatusCoder is implemented by errors that carry an HTTP status code, such
// as provider transport errors. It drives retryability classification.
type StatusCoder interface {
	HTTPStatus() int
}

// transientMarkers are matched case-insensitively against error messages for
// providers that report throttling only in prose.
var transientMarkers = []string{"rate limit", "timeout", "overloaded"}

// Retryable classifies an error as transient (worth retrying) or fatal.
//
// The conditions are a union: HTTP 429 or >=500, network timeouts, connection
// resets/refusals, DNS failures, or a message containing a known throttling
// marker. A 4xx status alone is fatal, but a 4xx whose message carries a
// marker (a provider reporting throttling under an odd code) still retries.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		code := sc.HTTPStatus()
		if code == http.StatusTooManyRequests || code >= 500 {
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Do calls op, retrying transient failures up to maxRetries additional times
// with exponential backoff starting at baseDelay. Fatal errors propagate
// immediately without delay; after exhausting retries the last error
// propagates. Total calls never exceed maxRetries+1.
func Do(ctx context.Context, logger *zap.Logger, op func() error, maxRetries int, baseDelay time.Duration) error {
	if maxRetries < 0 {
		maxRetries = 0
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0 // retry count, not elapsed time, is the budget

	attempt := 0
	wrapped := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return backoff.Permanent(err)
		}
		if logger != nil {
			logger.Warn("Transient backend error, will retry",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxRetries+1),
				zap.Error(err))
		}
		return err
	}

	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx))
}
