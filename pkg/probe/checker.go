package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go"

	"github.com/bugmaschine/epfetch/pkg/httpx"
)

// Checker reports whether a resource exists without downloading it.
type Checker interface {
	Exists(ctx context.Context, url string) bool
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, url string) bool

func (f CheckerFunc) Exists(ctx context.Context, url string) bool {
	return f(ctx, url)
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("bad status: %d %s", e.code, http.StatusText(e.code))
}

// HTTPChecker issues HEAD requests. Any 2xx status counts as present, every
// other status or transport failure as absent.
type HTTPChecker struct {
	client  *http.Client
	headers httpx.Headers

	// Retries is the number of extra attempts after a transport error or a
	// 5xx answer. 4xx answers are final.
	Retries    int
	RetryDelay time.Duration
}

// NewHTTPChecker builds a checker whose requests are bounded by timeout.
func NewHTTPChecker(headers httpx.Headers, timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		client:     httpx.NewProbeClient(timeout),
		headers:    headers,
		RetryDelay: 500 * time.Millisecond,
	}
}

func (c *HTTPChecker) Exists(ctx context.Context, url string) bool {
	check := func() error {
		return c.head(ctx, url)
	}

	var err error
	if c.Retries > 0 {
		err = retry.Do(check,
			retry.Context(ctx),
			retry.Attempts(uint(c.Retries)+1),
			retry.Delay(c.RetryDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(func(err error) bool {
				var se *statusError
				if errors.As(err, &se) {
					return se.code >= 500
				}
				return ctx.Err() == nil
			}),
		)
	} else {
		err = check()
	}

	if err != nil {
		slog.Debug("Existence check failed", "url", url, "error", err)
		return false
	}
	return true
}

func (c *HTTPChecker) head(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return err
	}
	c.headers.Apply(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}
