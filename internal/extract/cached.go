package extract

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/lexicompare/internal/cache"
	"github.com/ppiankov/lexicompare/internal/logging"
	"github.com/ppiankov/lexicompare/internal/model"
)

// Fingerprinter is implemented by extractors whose output depends on more
// than their name, such as the model behind an LLM extractor.
type Fingerprinter interface {
	Fingerprint() string
}

// CachedExtractor memoizes another extractor by content. The key covers the
// inner extractor's fingerprint, the taxonomy, the document content type and
// its text, so switching any of them misses.
type CachedExtractor struct {
	inner    Extractor
	cache    cache.Cache
	taxonomy string
	ttl      time.Duration
	logger   *zap.Logger
}

// NewCachedExtractor wraps inner. A ttl of 0 uses the cache's default.
func NewCachedExtractor(inner Extractor, c cache.Cache, taxonomy string, ttl time.Duration, logger *zap.Logger) *CachedExtractor {
	return &CachedExtractor{
		inner:    inner,
		cache:    c,
		taxonomy: taxonomy,
		ttl:      ttl,
		logger:   logging.OrNop(logger),
	}
}

// Name returns the inner extractor's name
func (c *CachedExtractor) Name() string {
	return c.inner.Name()
}

// Extract implements Extractor
func (c *CachedExtractor) Extract(ctx context.Context, doc model.Document) (model.ClauseSet, error) {
	clauses, _, err := c.ExtractCached(ctx, doc)
	return clauses, err
}

// ExtractCached is Extract that also reports whether the result came from the cache
func (c *CachedExtractor) ExtractCached(ctx context.Context, doc model.Document) (model.ClauseSet, bool, error) {
	key := cache.Key("extract", fingerprint(c.inner), c.taxonomy, doc.ContentType, doc.Text)

	if data, ok := c.cache.Get(key); ok {
		var clauses model.ClauseSet
		if err := json.Unmarshal(data, &clauses); err == nil {
			c.logger.Debug("extraction cache hit", zap.String("document", doc.Name))
			return clauses, true, nil
		}
		// Unreadable entries are replaced below
		_ = c.cache.Delete(key)
	}

	clauses, err := c.inner.Extract(ctx, doc)
	if err != nil {
		return nil, false, err
	}

	data, err := json.Marshal(clauses)
	if err == nil {
		err = c.cache.Set(key, data, c.ttl)
	}
	if err != nil {
		c.logger.Warn("failed to cache extraction", zap.String("document", doc.Name), zap.Error(err))
	}

	return clauses, false, nil
}

func fingerprint(e Extractor) string {
	if f, ok := e.(Fingerprinter); ok {
		return f.Fingerprint()
	}
	return e.Name()
}
