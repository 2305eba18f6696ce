// Package pipeline loads two documents, extracts their clauses and runs the
// comparison engine, then renders the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ppiankov/lexicompare/internal/cache"
	"github.com/ppiankov/lexicompare/internal/compare"
	"github.com/ppiankov/lexicompare/internal/extract"
	"github.com/ppiankov/lexicompare/internal/llm"
	"github.com/ppiankov/lexicompare/internal/logging"
	"github.com/ppiankov/lexicompare/internal/match"
	"github.com/ppiankov/lexicompare/internal/model"
	"github.com/ppiankov/lexicompare/internal/verdict"
)

// ErrNoClauses is returned when neither document yields enough clauses to compare
var ErrNoClauses = errors.New("could not find legal clauses — check the file is text-based, not a scanned image")

// ExtractorClausesFile names clause sets supplied as JSON files
const ExtractorClausesFile = "clauses-file"

// Options supplies collaborators that the config alone cannot build
type Options struct {
	// Provider overrides the provider built from cfg.LLM
	Provider llm.Provider

	// Cache memoizes extraction; nil disables it
	Cache cache.Cache

	// Limiter shares LLM and fetch budgets across pipelines
	Limiter Waiter
}

// Pipeline orchestrates the complete comparison process
type Pipeline struct {
	loader     *Loader
	extractor  extract.Extractor
	aggregator *compare.Aggregator
	policy     verdict.Policy
	summarizer *llm.Summarizer // Optional LLM summarizer (nil if disabled)
	renderer   *Renderer
	config     *model.Config
	logger     *zap.Logger
}

// New creates a pipeline. Invalid thresholds, an unknown taxonomy or a
// missing LLM provider for llm extraction fail here.
func New(cfg *model.Config, opts Options, logger *zap.Logger) (*Pipeline, error) {
	logger = logging.OrNop(logger)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	taxonomy, err := model.TaxonomyByName(cfg.Taxonomy)
	if err != nil {
		return nil, err
	}

	matcher, err := match.NewMatcher(cfg.Matching.MatchThreshold, match.WithIdenticalThreshold(cfg.Matching.IdenticalThreshold))
	if err != nil {
		return nil, err
	}

	aggregator, err := compare.NewAggregator(taxonomy, matcher, logger)
	if err != nil {
		return nil, err
	}

	policy, err := verdict.NewUniqueClausePolicy(cfg.Verdict.NoiseThreshold)
	if err != nil {
		return nil, err
	}

	provider := opts.Provider
	if provider == nil {
		provider, err = llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP), logger)
		if err != nil {
			return nil, fmt.Errorf("LLM provider: %w", err)
		}
	}
	if opts.Limiter != nil {
		provider = llm.WithRateLimit(provider, opts.Limiter)
	}

	var extractor extract.Extractor
	switch cfg.Extraction.Mode {
	case "llm":
		if provider == nil {
			return nil, errors.New("extraction mode llm needs an LLM provider (set llm.provider or --llm-provider)")
		}
		extractor, err = extract.NewLLMExtractor(provider, taxonomy, cfg.Extraction.MaxRetries, logger,
			extract.WithModel(cfg.LLM.Model),
			extract.WithInstructions(cfg.Extraction.Instructions))
	default:
		extractor, err = extract.NewHeuristicExtractor(taxonomy, logger)
	}
	if err != nil {
		return nil, err
	}
	if opts.Cache != nil {
		extractor = extract.NewCachedExtractor(extractor, opts.Cache, taxonomy.Name, cfg.Cache.DiskTTL, logger)
	}

	var summarizer *llm.Summarizer
	if cfg.LLM.Summary && provider != nil {
		summarizer = llm.NewSummarizer(provider, llm.ConfigFromModel(cfg.LLM, cfg.HTTP), logger)
	}

	var loaderOpts []LoaderOption
	if opts.Limiter != nil {
		loaderOpts = append(loaderOpts, WithHostLimiter(opts.Limiter))
	}

	return &Pipeline{
		loader:     NewLoader(cfg.HTTP, logger, loaderOpts...),
		extractor:  extractor,
		aggregator: aggregator,
		policy:     policy,
		summarizer: summarizer,
		renderer:   NewRenderer(cfg.Output.IncludeFooter),
		config:     cfg,
		logger:     logger,
	}, nil
}

// Renderer returns the pipeline's renderer
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}

// extraction is one document's extracted clauses
type extraction struct {
	clauses model.ClauseSet
	meta    model.ExtractionMeta
	err     error
}

// Compare loads and extracts both documents concurrently, then compares them
func (p *Pipeline) Compare(ctx context.Context, sourceA, sourceB string) (*model.Report, error) {
	sources := [2]string{sourceA, sourceB}
	var results [2]extraction

	// The first failure stops the other document's work
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup
	for i := range sources {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.extractSource(runCtx, sources[i])
			if results[i].err != nil {
				cancel(results[i].err)
			}
		}(i)
	}
	wg.Wait()

	// Report the error that caused the cancellation, not its echo on the other side
	cause := context.Cause(runCtx)
	for i, r := range results {
		if r.err != nil && r.err == cause {
			return nil, fmt.Errorf("document %s (%s): %w", string(rune('A'+i)), sources[i], r.err)
		}
	}
	for i, r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("document %s (%s): %w", string(rune('A'+i)), sources[i], r.err)
		}
	}

	names := [2]string{results[0].meta.Document, results[1].meta.Document}
	meta := []model.ExtractionMeta{results[0].meta, results[1].meta}
	return p.CompareClauses(ctx, results[0].clauses, results[1].clauses, names, meta)
}

func (p *Pipeline) extractSource(ctx context.Context, source string) extraction {
	doc, err := p.loader.Load(ctx, source)
	if err != nil {
		return extraction{err: fmt.Errorf("load: %w", err)}
	}

	var (
		clauses model.ClauseSet
		cached  bool
	)
	if c, ok := p.extractor.(*extract.CachedExtractor); ok {
		clauses, cached, err = c.ExtractCached(ctx, *doc)
	} else {
		clauses, err = p.extractor.Extract(ctx, *doc)
	}
	if err != nil {
		return extraction{err: fmt.Errorf("extract: %w", err)}
	}

	p.logger.Debug("extracted clauses",
		zap.String("document", doc.Name),
		zap.String("extractor", p.extractor.Name()),
		zap.Int("clauses", clauses.Count()),
		zap.Bool("cached", cached))

	return extraction{
		clauses: clauses,
		meta: model.ExtractionMeta{
			Document:  doc.Name,
			Extractor: p.extractor.Name(),
			Clauses:   clauses.Count(),
			Cached:    cached,
		},
	}
}

// CompareClauseFiles compares two pre-extracted clause sets stored as JSON
func (p *Pipeline) CompareClauseFiles(ctx context.Context, pathA, pathB string) (*model.Report, error) {
	paths := [2]string{pathA, pathB}
	var sets [2]model.ClauseSet
	var names [2]string
	meta := make([]model.ExtractionMeta, 2)

	for i, path := range paths {
		set, err := compare.LoadClauseSet(path)
		if err != nil {
			return nil, err
		}
		sets[i] = set
		names[i] = DisplayName(path)
		meta[i] = model.ExtractionMeta{Document: names[i], Extractor: ExtractorClausesFile, Clauses: set.Count()}
	}

	return p.CompareClauses(ctx, sets[0], sets[1], names, meta)
}

// CompareClauses runs the engine on already extracted clauses. It fails with
// ErrNoClauses when neither side reaches extraction.min_clauses; the optional
// summary runs after the verdict and only ever adds warnings.
func (p *Pipeline) CompareClauses(ctx context.Context, a, b model.ClauseSet, names [2]string, meta []model.ExtractionMeta) (*model.Report, error) {
	minClauses := p.config.Extraction.MinClauses
	if a.Count() < minClauses && b.Count() < minClauses {
		return nil, ErrNoClauses
	}

	comparison := p.aggregator.Compare(a, b, names)

	report := &model.Report{
		Comparison: comparison,
		Verdict:    p.policy.Evaluate(comparison),
		Extraction: meta,
		Principles: model.DefaultPrinciples(),
	}

	// Generate LLM summary if enabled (after the verdict, never affects it)
	if p.summarizer != nil && p.summarizer.IsEnabled() {
		summary, err := p.summarizer.GenerateSummary(ctx, *report)
		if err != nil {
			p.logger.Warn("LLM summary generation failed", zap.Error(err))
		} else if summary != nil {
			report.LLM = summary
		}
	}

	return report, nil
}

// Outputs names the files RenderReport writes; empty paths are skipped
type Outputs struct {
	JSON     string
	Markdown string
	HTML     string
}

// RenderReport renders the report to the requested outputs and prints a summary
func (p *Pipeline) RenderReport(report *model.Report, out Outputs, verbose bool) error {
	return RenderReport(p.renderer, report, out, verbose, p.logger)
}

// RenderReport renders report with r. Progress lines go to the logger when
// verbose.
func RenderReport(r *Renderer, report *model.Report, out Outputs, verbose bool, logger *zap.Logger) error {
	logger = logging.OrNop(logger)

	if out.JSON != "" {
		if err := r.RenderJSON(report, out.JSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			logger.Info("wrote JSON", zap.String("path", out.JSON))
		}
	}

	if out.Markdown != "" {
		if err := r.RenderMarkdown(report, out.Markdown); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			logger.Info("wrote Markdown", zap.String("path", out.Markdown))
		}
	}

	if out.HTML != "" {
		if err := r.RenderHTML(report, out.HTML); err != nil {
			return fmt.Errorf("render HTML: %w", err)
		}
		if verbose {
			logger.Info("wrote HTML", zap.String("path", out.HTML))
		}
	}

	// Render LLM summary to separate file if present
	if report.LLM != nil && report.LLM.Enabled && out.Markdown != "" {
		llmPath := strings.TrimSuffix(out.Markdown, ".md") + ".llm.md"
		if err := r.RenderLLMMarkdown(llm.RenderSeparateMarkdown(report.LLM), llmPath); err != nil {
			logger.Warn("failed to write LLM summary", zap.String("path", llmPath), zap.Error(err))
		} else if verbose {
			logger.Info("wrote LLM summary", zap.String("path", llmPath))
		}
	}

	r.RenderSummary(report)

	return nil
}
