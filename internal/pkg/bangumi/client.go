// Package bangumi is a client for the subset of the Bangumi v0 API a bingo card needs:
// user collections, subject search sorted by heat, user profiles and avatar images.
package bangumi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
	"gopkg.in/guregu/null.v3"

	"animebingo.dev/backend-next/internal/pkg/observability"
)

const (
	DefaultBaseURL   = "https://api.bgm.tv"
	DefaultUserAgent = "animebingo/backend-next (https://github.com/whitering/anime-bingo-card)"

	// MaxCollectionPageSize is the largest page the collection endpoint serves.
	MaxCollectionPageSize = 50

	maxErrorBody    = 4 << 10
	maxResponseBody = 8 << 20
)

var ErrCircuitOpen = errors.New("bangumi: circuit open")

type Config struct {
	BaseURL   string
	UserAgent string
	// Timeout bounds a single call, retries included.
	Timeout time.Duration
	// RateLimit is requests per second across the client. Zero disables limiting.
	RateLimit float64
	Burst     int
	// RetryAttempts is the number of attempts for retryable failures. Zero means one attempt.
	RetryAttempts uint
	// RetryDelay is the base delay of the exponential backoff in between attempts.
	RetryDelay time.Duration
	// MetaTags additionally constrains subject searches, e.g. ["TV", "日本"].
	MetaTags []string
}

type Client struct {
	conf    Config
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[*http.Response]
}

// StatusError is an unexpected upstream HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("bangumi: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("bangumi: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func New(conf Config) *Client {
	if conf.BaseURL == "" {
		conf.BaseURL = DefaultBaseURL
	}
	conf.BaseURL = strings.TrimRight(conf.BaseURL, "/")
	if conf.UserAgent == "" {
		conf.UserAgent = DefaultUserAgent
	}
	if conf.Timeout <= 0 {
		conf.Timeout = 15 * time.Second
	}
	if conf.RetryAttempts == 0 {
		conf.RetryAttempts = 1
	}
	if conf.RetryDelay <= 0 {
		conf.RetryDelay = 200 * time.Millisecond
	}

	c := &Client{
		conf: conf,
		http: &http.Client{Timeout: conf.Timeout},
	}
	if conf.RateLimit > 0 {
		burst := conf.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(conf.RateLimit), burst)
	}
	c.cb = newBreaker("bangumi-api")
	return c
}

func newBreaker(name string) *gobreaker.CircuitBreaker[*http.Response] {
	observability.UpstreamCircuitState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 20 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		// client errors are the caller's fault, not upstream's
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return !se.Temporary()
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("evt.name", "bangumi.circuit.state").
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("upstream circuit breaker changed state")
			observability.UpstreamCircuitState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

type request struct {
	op         string
	method     string
	path       string
	body       any
	credential null.String
	// absolute URL, bypassing BaseURL
	url string
}

// do sends req and decodes a 2xx JSON response into dest. A nil dest discards the body.
func (c *Client) do(ctx context.Context, req request, dest any) error {
	body, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return errors.Wrapf(err, "bangumi: %s: decode response", req.op)
	}
	return nil
}

// send performs req with rate limiting, circuit breaking and retries, returning the body of a 2xx response.
func (c *Client) send(ctx context.Context, req request) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.conf.Timeout)
	defer cancel()

	start := time.Now()
	attempt := 0

	body, err := retry.DoWithData(
		func() ([]byte, error) {
			attempt++
			if attempt > 1 {
				observability.UpstreamRetries.WithLabelValues(req.op).Inc()
			}
			return c.attempt(ctx, req)
		},
		retry.Context(ctx),
		retry.Attempts(c.conf.RetryAttempts),
		retry.Delay(c.conf.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
	)

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	observability.UpstreamRequestDuration.WithLabelValues(req.op, outcome).Observe(time.Since(start).Seconds())

	return body, err
}

func (c *Client) attempt(ctx context.Context, req request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := c.cb.Execute(func() (*http.Response, error) {
		httpReq, err := c.newRequest(ctx, req)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			defer resp.Body.Close()
			return nil, &StatusError{StatusCode: resp.StatusCode, Body: readBodyForError(resp.Body)}
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errors.Wrap(ErrCircuitOpen, err.Error())
		}
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
}

func (c *Client) newRequest(ctx context.Context, req request) (*http.Request, error) {
	u := req.url
	if u == "" {
		u = c.conf.BaseURL + req.path
	}

	var payload io.Reader
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return nil, errors.Wrapf(err, "bangumi: %s: encode request", req.op)
		}
		payload = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, payload)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("User-Agent", c.conf.UserAgent)
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.credential.Valid && req.credential.String != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.credential.String)
	}
	return httpReq, nil
}

func retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	// transport errors
	return true
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

func readBodyForError(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
