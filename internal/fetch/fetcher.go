package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
)

// DefaultTimeout bounds a single request when the caller does not pick one.
const DefaultTimeout = 5 * time.Second

var (
	// ErrTimeout is returned when a request did not complete before its deadline.
	ErrTimeout = errors.New("request timed out")
	// ErrCircuitOpen is returned while the upstream is considered unhealthy.
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// HTTPError captures a non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// Response is a fully read 2xx response.
type Response struct {
	StatusCode int
	Body       []byte
}

// Config controls a Fetcher.
type Config struct {
	// Name identifies the circuit breaker in logs.
	Name      string
	Timeout   time.Duration
	UserAgent string
	// Client overrides the underlying transport, mostly for tests.
	Client *http.Client
}

// Fetcher performs GET requests with a hard per-request deadline behind a
// circuit breaker. It never retries.
type Fetcher struct {
	client  *resty.Client
	circuit *gobreaker.CircuitBreaker
	timeout time.Duration
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	var client *resty.Client
	if cfg.Client != nil {
		client = resty.NewWithClient(cfg.Client)
	} else {
		client = resty.New()
	}
	client.SetRetryCount(0)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	name := cfg.Name
	if name == "" {
		name = "upstream"
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:         name,
		MaxRequests:  5,
		Interval:     1 * time.Minute,
		Timeout:      2 * time.Minute,
		IsSuccessful: isSuccessful,
	})

	return &Fetcher{
		client:  client,
		circuit: cb,
		timeout: timeout,
	}
}

// Timeout returns the default per-request deadline.
func (f *Fetcher) Timeout() time.Duration {
	return f.timeout
}

// Get issues a GET to rawURL. A non-positive timeout falls back to the
// fetcher default. The deadline timer is released on every return path.
func (f *Fetcher) Get(ctx context.Context, rawURL string, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = f.timeout
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := f.circuit.Execute(func() (interface{}, error) {
		resp, execErr := f.client.R().SetContext(reqCtx).Get(rawURL)
		if execErr != nil {
			return nil, execErr
		}

		code := resp.StatusCode()
		if code < 200 || code >= 300 {
			return nil, &HTTPError{StatusCode: code, Body: resp.Body()}
		}
		return &Response{StatusCode: code, Body: resp.Body()}, nil
	})

	if err == nil {
		resp, ok := result.(*Response)
		if !ok {
			return nil, fmt.Errorf("unexpected result type from circuit breaker")
		}
		return resp, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}

	// Only our own deadline counts as a timeout; a cancelled parent is reported as-is.
	if ctx.Err() == nil && errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	return nil, err
}

// isSuccessful keeps client errors such as 404 from tripping the breaker.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode < 500 && httpErr.StatusCode != http.StatusTooManyRequests
	}
	return false
}

// StatusCode extracts the HTTP status from err, or 0 when err is not an HTTP error.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
