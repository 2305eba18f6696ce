package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/lexicompare/internal/logging"
	"github.com/ppiankov/lexicompare/internal/model"
	"github.com/ppiankov/lexicompare/internal/util"
	"github.com/ppiankov/lexicompare/internal/worker"
)

var (
	// ErrDisallowed is returned when robots.txt forbids fetching a URL document
	ErrDisallowed = errors.New("disallowed by robots.txt")

	// ErrTooLarge is returned when a document exceeds http.max_body_bytes
	ErrTooLarge = errors.New("document exceeds size limit")

	// ErrUnsupportedContent is returned for binary documents such as PDFs or images
	ErrUnsupportedContent = errors.New("unsupported document type")
)

const fetchAttempts = 3

// fetchSleep is replaced in tests
var fetchSleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// StatusError is a non-2xx response to a document fetch
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return "unexpected status: " + e.Status
}

// Waiter blocks until a request for key may proceed
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// Loader reads documents from local files or http(s) URLs
type Loader struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsPolicy // nil when robots.txt is ignored
	limiter    Waiter             // per-host fetch limiter, optional
	logger     *zap.Logger
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithHostLimiter rate-limits URL fetches per host
func WithHostLimiter(w Waiter) LoaderOption {
	return func(l *Loader) {
		l.limiter = w
	}
}

// NewLoader creates a loader from the HTTP settings
func NewLoader(cfg model.HTTPConfig, logger *zap.Logger, opts ...LoaderOption) *Loader {
	logger = logging.OrNop(logger)

	client := util.NewHTTPClient(util.ProxySettings{
		HTTPProxy:  cfg.HTTPProxy,
		HTTPSProxy: cfg.HTTPSProxy,
		NoProxy:    cfg.NoProxy,
	}, cfg.Timeout)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return fmt.Errorf("stopped after 3 redirects")
		}
		return nil
	}

	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = model.DefaultConfig().HTTP.MaxBodyBytes
	}

	l := &Loader{
		httpClient: client,
		userAgent:  cfg.UserAgent,
		maxBytes:   maxBytes,
		logger:     logger,
	}
	if cfg.RespectRobots {
		l.robots = util.NewRobotsPolicy(client, cfg.UserAgent, time.Hour, logger)
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IsURL reports whether source is an http(s) URL rather than a file path
func IsURL(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// DisplayName derives the name shown in reports: the file base name, or the
// last URL path segment (the host when the path is empty)
func DisplayName(source string) string {
	if !IsURL(source) {
		return filepath.Base(source)
	}

	parsed, err := url.Parse(source)
	if err != nil {
		return source
	}

	p := strings.Trim(parsed.Path, "/")
	if p == "" {
		return parsed.Host
	}
	last := path.Base(p)
	if unescaped, err := url.PathUnescape(last); err == nil {
		last = unescaped
	}
	return last
}

// Load reads source into a Document
func (l *Loader) Load(ctx context.Context, source string) (*model.Document, error) {
	if IsURL(source) {
		return l.fetchWithRetry(ctx, source)
	}
	return l.readFile(source)
}

func (l *Loader) readFile(filePath string) (*model.Document, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer func() { _ = f.Close() }()

	body, err := l.readLimited(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}

	contentType := contentTypeFor(filePath, "", body)
	if err := checkText(contentType); err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}

	return &model.Document{
		Name:        DisplayName(filePath),
		Source:      filePath,
		ContentType: contentType,
		Text:        string(body),
	}, nil
}

// fetchWithRetry retries 429, 5xx and transport failures with 1s, 2s backoff
func (l *Loader) fetchWithRetry(ctx context.Context, rawURL string) (*model.Document, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		doc, err := l.fetch(ctx, rawURL)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) || attempt == fetchAttempts {
			break
		}

		delay := time.Duration(1<<(attempt-1)) * time.Second
		l.logger.Debug("retrying fetch",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := fetchSleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	var transportErr *transportError
	return errors.As(err, &transportErr)
}

// transportError marks a failed round trip, as opposed to a bad request or body
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "fetch: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func (l *Loader) fetch(ctx context.Context, rawURL string) (*model.Document, error) {
	if l.robots != nil {
		allowed, err := l.robots.Allowed(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("robots check: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
		}
	}

	if l.limiter != nil {
		host, err := worker.HostKey(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse URL: %w", err)
		}
		if err := l.limiter.Wait(ctx, host); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &transportError{err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := l.readLimited(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rawURL, err)
	}

	finalURL := resp.Request.URL.String()
	contentType := contentTypeFor(resp.Request.URL.Path, resp.Header.Get("Content-Type"), body)
	if err := checkText(contentType); err != nil {
		return nil, fmt.Errorf("%s: %w", rawURL, err)
	}

	l.logger.Debug("fetched document",
		zap.String("url", finalURL),
		zap.Int("status", resp.StatusCode),
		zap.String("content_type", contentType),
		zap.Int("bytes", len(body)))

	return &model.Document{
		Name:        DisplayName(finalURL),
		Source:      rawURL,
		ContentType: contentType,
		Text:        string(body),
	}, nil
}

// readLimited reads up to maxBytes and fails rather than truncating
func (l *Loader) readLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > l.maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, l.maxBytes)
	}
	return body, nil
}

// contentTypeFor prefers the declared type, then the file extension, then sniffing
func contentTypeFor(name, declared string, body []byte) string {
	if declared != "" {
		return declared
	}
	switch strings.ToLower(path.Ext(filepath.ToSlash(name))) {
	case ".html", ".htm", ".xhtml":
		return "text/html"
	case ".txt", ".md", ".text":
		return "text/plain"
	}
	return http.DetectContentType(body)
}

func checkText(contentType string) error {
	ct := strings.ToLower(contentType)
	if strings.HasPrefix(ct, "text/") || strings.Contains(ct, "html") || strings.Contains(ct, "xml") || strings.Contains(ct, "json") {
		return nil
	}
	return fmt.Errorf("%w: %s (lexicompare reads text and HTML documents)", ErrUnsupportedContent, contentType)
}
