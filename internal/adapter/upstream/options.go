package upstream

import (
	"time"

	"github.com/syltwerk/hotelchat/internal/config"
)

const (
	defaultMaxAttempts    = 3
	defaultConnectTimeout = 10 * time.Second
	defaultTimeout        = 30 * time.Second
	defaultBackoffInitial = 200 * time.Millisecond
	minBackoffInitial     = 50 * time.Millisecond
	defaultBackoffFactor  = 2.0
)

// DefaultRetryStatusCodes are the HTTP statuses that trigger another attempt.
var DefaultRetryStatusCodes = []int{408, 425, 429, 500, 502, 503, 504}

// Options configures retry and timeout behaviour of a Client.
type Options struct {
	MaxAttempts      int
	ConnectTimeout   time.Duration
	Timeout          time.Duration // Per attempt
	BackoffInitial   time.Duration
	BackoffFactor    float64
	RetryStatusCodes []int
	MaxElapsed       time.Duration // Wall-clock ceiling for the whole call; 0 disables
	ErrorLogPath     string
}

// OptionsFromConfig converts the upstream config section.
func OptionsFromConfig(c config.Upstream) Options {
	return Options{
		MaxAttempts:      c.MaxAttempts,
		ConnectTimeout:   c.ConnectTimeout,
		Timeout:          c.Timeout,
		BackoffInitial:   c.BackoffInitial,
		BackoffFactor:    c.BackoffFactor,
		RetryStatusCodes: c.RetryStatusCodes,
		MaxElapsed:       c.MaxElapsed,
		ErrorLogPath:     c.ErrorLogPath,
	}
}

// normalized fills unset fields with defaults and applies the lower bounds.
func (o Options) normalized() Options {
	if o.MaxAttempts < 1 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	switch {
	case o.BackoffInitial <= 0:
		o.BackoffInitial = defaultBackoffInitial
	case o.BackoffInitial < minBackoffInitial:
		o.BackoffInitial = minBackoffInitial
	}
	if o.BackoffFactor < 1 {
		o.BackoffFactor = defaultBackoffFactor
	}
	if o.RetryStatusCodes == nil {
		o.RetryStatusCodes = DefaultRetryStatusCodes
	}
	return o
}

// Backoff returns the wait before the attempt following attempt n (1-based):
// BackoffInitial * BackoffFactor^(n-1), rounded to whole milliseconds.
func (o Options) Backoff(n int) time.Duration {
	o = o.normalized()
	ms := float64(o.BackoffInitial) / float64(time.Millisecond)
	for range n - 1 {
		ms *= o.BackoffFactor
	}
	return time.Duration(ms+0.5) * time.Millisecond
}
