package httpx

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/byte4ever/r8econf"
	"github.com/byte4ever/r8econf/engine"
)

// StatusErrorType is the name Register binds [StatusError] to.
const StatusErrorType = "httpx.StatusError"

// ErrorClass tells the resilience layer how to treat an HTTP
// status code.
type ErrorClass int

const (
	// Success means the request succeeded (e.g. 2xx).
	Success ErrorClass = iota
	// Transient means the error is retriable (e.g. 429, 503).
	Transient
	// Permanent means the error is non-retriable (e.g. 400).
	Permanent
)

// Classifier maps an HTTP status code to an ErrorClass.
//
// Pattern: Strategy. Caller injects classification logic
// without modifying the adapter.
type Classifier func(statusCode int) ErrorClass

// DefaultClassifier treats 2xx and 3xx as success, 408, 429 and 5xx as
// transient and every other code as permanent.
func DefaultClassifier(code int) ErrorClass {
	switch {
	case code < http.StatusBadRequest:
		return Success
	case code == http.StatusRequestTimeout,
		code == http.StatusTooManyRequests,
		code >= http.StatusInternalServerError:
		return Transient
	default:
		return Permanent
	}
}

// StatusError is returned when the Classifier marks a status
// code as Transient or Permanent. The original response
// remains accessible for header/body inspection.
type StatusError struct {
	// Response is the original HTTP response that triggered
	// the error. The body has not been read; the caller closes it.
	Response   *http.Response
	StatusCode int
}

// Error returns a human-readable description of the status
// error.
func (e *StatusError) Error() string {
	return "http status " + strconv.Itoa(e.StatusCode)
}

// Register binds [StatusErrorType] to StatusError in r.
func Register(r *r8econf.TypeResolver) {
	r8econf.RegisterErrorType[*StatusError](r, StatusErrorType)
}

// Client wraps an http.Client with a compiled resilience policy
// and HTTP status code classification.
//
// Pattern: Adapter. Bridges net/http and the compiled policy
// by translating HTTP status codes into error classification.
type Client struct {
	hc *http.Client
	p  *engine.Policy
	cl Classifier
}

// NewClient creates a Client that executes HTTP requests
// through p. A nil hc uses http.DefaultClient and a nil
// classifier uses DefaultClassifier.
func NewClient(hc *http.Client, p *engine.Policy, cl Classifier) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}

	if cl == nil {
		cl = DefaultClassifier
	}

	return &Client{hc: hc, p: p, cl: cl}
}

// Policy returns the policy requests run through.
func (c *Client) Policy() *engine.Policy { return c.p }

// Do sends req through the policy. Each attempt clones req with the
// attempt's context, so requests carrying a body must set GetBody to be
// retried. Transient status codes surface as *StatusError, permanent ones
// as *StatusError marked with engine.Permanent so retries stop. The body of
// a failed attempt is closed before the next attempt starts.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var (
		mu   sync.Mutex
		prev *http.Response
	)

	discard := func(next *http.Response) {
		mu.Lock()
		defer mu.Unlock()

		if prev != nil && prev.Body != nil {
			_, _ = io.Copy(io.Discard, prev.Body)
			_ = prev.Body.Close()
		}

		prev = next
	}

	//nolint:wrapcheck // policy errors are returned as-is
	return engine.Execute(req.Context(), c.p, func(ctx context.Context) (*http.Response, error) {
		discard(nil)

		attempt, err := cloneRequest(ctx, req)
		if err != nil {
			return nil, engine.Permanent(err)
		}

		resp, err := c.hc.Do(attempt)
		if err != nil {
			return nil, err
		}

		switch c.cl(resp.StatusCode) {
		case Transient:
			discard(resp)
			return nil, &StatusError{Response: resp, StatusCode: resp.StatusCode}
		case Permanent:
			return nil, engine.Permanent(&StatusError{Response: resp, StatusCode: resp.StatusCode})
		default:
			return resp, nil
		}
	})
}

func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	attempt := req.Clone(ctx)

	if req.Body == nil || req.GetBody == nil {
		return attempt, nil
	}

	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}

	attempt.Body = body

	return attempt, nil
}
