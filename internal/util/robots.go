package util

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// RobotsPolicy answers whether a URL may be fetched under its host's
// robots.txt. Parsed files are cached per host.
type RobotsPolicy struct {
	cache      *gocache.Cache
	httpClient *http.Client
	userAgent  string
	logger     *zap.Logger
}

// NewRobotsPolicy creates a policy that remembers each host's robots.txt for ttl
func NewRobotsPolicy(client *http.Client, userAgent string, ttl time.Duration, logger *zap.Logger) *RobotsPolicy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RobotsPolicy{
		cache:      gocache.New(ttl, 2*ttl),
		httpClient: client,
		userAgent:  userAgent,
		logger:     logger,
	}
}

// Allowed reports whether rawURL may be fetched. A robots.txt that cannot be
// retrieved, or answers with any 4xx status, allows everything. A 5xx answer
// disallows everything.
func (r *RobotsPolicy) Allowed(ctx context.Context, rawURL string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("parse URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return true, nil
	}

	data, err := r.robots(ctx, parsed)
	if err != nil {
		r.logger.Debug("robots.txt unavailable, allowing", zap.String("host", parsed.Host), zap.Error(err))
		return true, nil
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	return data.TestAgent(path, r.userAgent), nil
}

// Clear forgets every cached robots.txt
func (r *RobotsPolicy) Clear() {
	r.cache.Flush()
}

func (r *RobotsPolicy) robots(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	key := target.Scheme + "://" + target.Host
	if cached, ok := r.cache.Get(key); ok {
		return cached.(*robotstxt.RobotsData), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	r.cache.SetDefault(key, data)
	return data, nil
}
