package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// excerptRunes is the maximum length of a body excerpt in the error log.
const excerptRunes = 500

// errorLogEntry is one line of the upstream error log. Empty fields are omitted.
type errorLogEntry struct {
	Timestamp      string `json:"timestamp"`
	URL            string `json:"url,omitempty"`
	StatusCode     int    `json:"status_code,omitempty"`
	ErrorCode      string `json:"error_code,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	BodyExcerpt    string `json:"body_excerpt,omitempty"`
	TransportError string `json:"transport_error,omitempty"`
	Attempts       int    `json:"attempts,omitempty"`
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Excerpt returns the first 500 runes of body with whitespace runs collapsed
// to single spaces and the ends trimmed.
func Excerpt(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	s := string(body)
	n := 0
	for i := range s {
		if n == excerptRunes {
			s = s[:i]
			break
		}
		n++
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// appendErrorLog writes one JSON line to path. Failures are logged and otherwise ignored.
func (c *Client) appendErrorLog(ctx context.Context, path, rawURL string, res *Result) {
	entry := errorLogEntry{
		Timestamp:      c.now().Format(time.RFC3339),
		URL:            rawURL,
		StatusCode:     res.StatusCode,
		ErrorCode:      string(res.ErrorCode),
		ErrorMessage:   res.ErrorMessage,
		BodyExcerpt:    Excerpt(res.Body),
		TransportError: res.TransportError,
		Attempts:       res.Attempts,
	}
	var line bytes.Buffer
	enc := json.NewEncoder(&line)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(entry); err != nil {
		c.logger.WarnContext(ctx, "encode upstream error log entry", "error", err)
		return
	}

	c.logMu.Lock()
	defer c.logMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o775); err != nil {
		c.logger.WarnContext(ctx, "create upstream error log directory", "path", path, "error", err)
		return
	}
	//nolint:gosec // G304: path comes from operator or tenant configuration
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o664)
	if err != nil {
		c.logger.WarnContext(ctx, "open upstream error log", "path", path, "error", err)
		return
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(line.Bytes()); err != nil {
		c.logger.WarnContext(ctx, "write upstream error log", "path", path, "error", err)
	}
}

// LogRejected records a response that arrived successfully but was rejected
// by the caller, e.g. because it was not valid JSON. res.ErrorCode should
// carry the caller's classification. opts may override the error log path.
func (c *Client) LogRejected(ctx context.Context, rawURL string, res Result, opts ...CallOption) {
	settings := callSettings{errorLogPath: c.opts.ErrorLogPath, headers: http.Header{}}
	for _, o := range opts {
		o(&settings)
	}
	c.logger.WarnContext(ctx, "upstream response rejected",
		"url", rawURL,
		"status_code", res.StatusCode,
		"error_code", res.ErrorCode,
		"body_excerpt", Excerpt(res.Body),
	)
	if settings.errorLogPath != "" {
		c.appendErrorLog(ctx, settings.errorLogPath, rawURL, &res)
	}
}
