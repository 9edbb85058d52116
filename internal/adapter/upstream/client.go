// Package upstream delivers chat payloads to the model API with retry,
// exponential backoff and typed failure classification.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	hcotel "github.com/syltwerk/hotelchat/internal/adapter/otel"
	"github.com/syltwerk/hotelchat/internal/domain/errcode"
	"github.com/syltwerk/hotelchat/internal/resilience"
)

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 4 << 20

// Result is the outcome of PostJSON. It is always well-formed; failures are
// reported through ErrorCode rather than a Go error.
type Result struct {
	Success        bool
	Body           []byte
	StatusCode     int
	Attempts       int
	ErrorCode      errcode.Code
	ErrorMessage   string
	TransportError string
	Elapsed        time.Duration
}

// state is a step of the retry state machine.
type state int

const (
	stateAttempting state = iota
	stateBackoff
	stateSucceeded
	stateFailed
)

// attemptOutcome is the classified result of a single HTTP exchange.
type attemptOutcome struct {
	status       int
	body         []byte
	code         errcode.Code
	message      string
	transportErr string
	retryable    bool
	success      bool
}

// Client posts JSON to the model API. It is safe for concurrent use.
type Client struct {
	opts     Options
	http     *http.Client
	breakers *resilience.Set
	limiter  *resilience.Limiter
	metrics  *hcotel.Metrics
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time

	logMu sync.Mutex
}

// Option customises a Client.
type Option func(*Client)

// WithBreakers enables per-host circuit breaking.
func WithBreakers(s *resilience.Set) Option { return func(c *Client) { c.breakers = s } }

// WithLimiter bounds concurrent upstream calls.
func WithLimiter(l *resilience.Limiter) Option { return func(c *Client) { c.limiter = l } }

// WithMetrics records attempt counts and call durations.
func WithMetrics(m *hcotel.Metrics) Option { return func(c *Client) { c.metrics = m } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithSleep replaces the backoff wait. fn must return ctx.Err() when ctx ends first.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// New creates a Client. The default transport dials with ConnectTimeout,
// does not follow redirects and is instrumented with OpenTelemetry.
func New(opts Options, options ...Option) *Client {
	opts = opts.normalized()
	c := &Client{
		opts:   opts,
		logger: slog.Default(),
		sleep:  sleepContext,
		now:    time.Now,
	}
	for _, o := range options {
		o(c)
	}
	if c.http == nil {
		c.http = newHTTPClient(opts.ConnectTimeout)
	}
	return c
}

func newHTTPClient(connectTimeout time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext
	tr.TLSHandshakeTimeout = connectTimeout
	return &http.Client{
		Transport: hcotel.Transport(tr),
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// CallOption adjusts a single PostJSON call.
type CallOption func(*callSettings)

type callSettings struct {
	errorLogPath string
	headers      http.Header
}

// WithErrorLog overrides the error log path for this call.
func WithErrorLog(path string) CallOption {
	return func(s *callSettings) {
		if path != "" {
			s.errorLogPath = path
		}
	}
}

// WithHeader adds a request header for this call.
func WithHeader(key, value string) CallOption {
	return func(s *callSettings) { s.headers.Set(key, value) }
}

// PostJSON posts payload to rawURL, retrying retryable failures with
// exponential backoff until it succeeds, fails terminally, runs out of
// attempts, hits MaxElapsed or ctx ends.
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload []byte, opts ...CallOption) Result {
	settings := callSettings{errorLogPath: c.opts.ErrorLogPath, headers: http.Header{}}
	for _, o := range opts {
		o(&settings)
	}

	start := c.now()
	host := hostOf(rawURL)
	ctx, span := hcotel.StartUpstreamSpan(ctx, host)
	defer span.End()

	var res Result
	if c.breakers != nil && host != "" {
		b := c.breakers.For(host)
		if !b.Allow() {
			res = Result{ErrorCode: errcode.ConnectionError, ErrorMessage: resilience.ErrCircuitOpen.Error()}
			c.finish(ctx, rawURL, host, start, &res, settings)
			return res
		}
		defer func() {
			if res.Success || !availabilityFailure(res.ErrorCode) {
				b.Success()
			} else {
				b.Failure()
			}
		}()
	}

	err := c.limiter.Run(ctx, func() {
		res = c.run(ctx, rawURL, payload, settings)
	})
	if err != nil {
		res = Result{ErrorCode: contextCode(err), ErrorMessage: "Wartezeit auf freie Verbindung überschritten.", TransportError: err.Error()}
	}

	c.finish(ctx, rawURL, host, start, &res, settings)
	if res.Success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, string(res.ErrorCode))
	}
	span.SetAttributes(
		attribute.Int("upstream.attempts", res.Attempts),
		attribute.Int("http.response.status_code", res.StatusCode),
	)
	return res
}

// run is the retry state machine.
func (c *Client) run(ctx context.Context, rawURL string, payload []byte, settings callSettings) Result {
	if c.opts.MaxElapsed > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.MaxElapsed)
		defer cancel()
	}

	var (
		res  Result
		last attemptOutcome
	)
	st := stateAttempting
	for {
		switch st {
		case stateAttempting:
			res.Attempts++
			last = c.attempt(ctx, rawURL, payload, settings.headers)
			switch {
			case last.success:
				st = stateSucceeded
			case !last.retryable || res.Attempts >= c.opts.MaxAttempts:
				st = stateFailed
			default:
				st = stateBackoff
			}

		case stateBackoff:
			d := c.opts.Backoff(res.Attempts)
			c.logger.DebugContext(ctx, "upstream retry scheduled",
				"attempt", res.Attempts, "backoff_ms", d.Milliseconds(), "error_code", last.code)
			if err := c.sleep(ctx, d); err != nil {
				last.code = contextCode(err)
				last.transportErr = err.Error()
				st = stateFailed
				continue
			}
			st = stateAttempting

		case stateSucceeded:
			res.Success = true
			res.Body = last.body
			res.StatusCode = last.status
			return res

		case stateFailed:
			res.Body = last.body
			res.StatusCode = last.status
			res.ErrorCode = last.code
			res.ErrorMessage = last.message
			res.TransportError = last.transportErr
			return res
		}
	}
}

// attempt performs one POST and classifies the outcome.
func (c *Client) attempt(ctx context.Context, rawURL string, payload []byte, headers http.Header) attemptOutcome {
	actx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return attemptOutcome{
			code:         errcode.InitError,
			message:      "Anfrage konnte nicht initialisiert werden.",
			transportErr: err.Error(),
		}
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.ContentLength = int64(len(payload))

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		out := classifyTransport(ctx, err)
		out.status = resp.StatusCode
		return out
	}

	return c.classifyStatus(resp.StatusCode, body)
}

func (c *Client) classifyStatus(status int, body []byte) attemptOutcome {
	out := attemptOutcome{status: status, body: body}
	switch {
	case status >= 200 && status < 300:
		out.success = true
	case status == 0:
		out.retryable = true
		out.code = errcode.NoStatus
		out.message = "Kein HTTP-Statuscode erhalten."
	case slices.Contains(c.opts.RetryStatusCodes, status):
		out.retryable = true
		out.code = errcode.ForStatus(status)
		out.message = "HTTP-Status " + strconv.Itoa(status)
	case status >= 400:
		out.code = errcode.ForStatus(status)
		out.message = "HTTP-Status " + strconv.Itoa(status)
	default:
		out.code = errcode.UnexpectedStatus
		out.message = "Unerwarteter HTTP-Status " + strconv.Itoa(status)
	}
	return out
}

// classifyTransport maps a client error. parent is the call context: once it
// has ended the failure is terminal regardless of its kind.
func classifyTransport(parent context.Context, err error) attemptOutcome {
	out := attemptOutcome{transportErr: err.Error()}

	if perr := parent.Err(); perr != nil {
		out.code = contextCode(perr)
		out.message = "Anfrage abgebrochen."
		return out
	}

	var dnsErr *net.DNSError
	var netErr net.Error
	var opErr *net.OpError
	switch {
	case errors.As(err, &dnsErr) && !dnsErr.IsTimeout:
		out.code, out.retryable = errcode.ConnectionError, true
		out.message = "Host konnte nicht aufgelöst werden."
	case errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()):
		out.code, out.retryable = errcode.Timeout, true
		out.message = "Zeitüberschreitung bei der Anfrage."
	case errors.Is(err, syscall.ECONNREFUSED) || (errors.As(err, &opErr) && opErr.Op == "dial"):
		out.code, out.retryable = errcode.ConnectionError, true
		out.message = "Verbindung konnte nicht hergestellt werden."
	default:
		out.code = errcode.TransportError
		out.message = "Unbekannter Transportfehler."
	}
	return out
}

func contextCode(err error) errcode.Code {
	if errors.Is(err, context.DeadlineExceeded) {
		return errcode.Timeout
	}
	return errcode.TransportError
}

// availabilityFailure reports whether code indicates the upstream is unhealthy
// rather than rejecting this particular request.
func availabilityFailure(code errcode.Code) bool {
	switch code {
	case errcode.Timeout, errcode.ConnectionError, errcode.NoStatus, errcode.HTTP5xx:
		return true
	}
	return false
}

func (c *Client) finish(ctx context.Context, rawURL, host string, start time.Time, res *Result, settings callSettings) {
	res.Elapsed = c.now().Sub(start)

	if c.metrics != nil {
		attrs := metric.WithAttributes(
			attribute.String("upstream.host", host),
			attribute.Bool("success", res.Success),
			attribute.String("error_code", string(res.ErrorCode)),
		)
		c.metrics.UpstreamAttempts.Add(ctx, int64(res.Attempts), attrs)
		c.metrics.UpstreamDuration.Record(ctx, res.Elapsed.Seconds(), attrs)
	}

	if res.Success {
		return
	}
	c.logger.WarnContext(ctx, "upstream call failed",
		"url", rawURL,
		"status_code", res.StatusCode,
		"error_code", res.ErrorCode,
		"attempts", res.Attempts,
		"elapsed_ms", res.Elapsed.Milliseconds(),
		"transport_error", res.TransportError,
	)
	if settings.errorLogPath != "" {
		c.appendErrorLog(ctx, settings.errorLogPath, rawURL, res)
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
