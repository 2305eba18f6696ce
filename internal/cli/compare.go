package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/lexicompare/internal/cache"
	"github.com/ppiankov/lexicompare/internal/model"
	"github.com/ppiankov/lexicompare/internal/pipeline"
	"github.com/ppiankov/lexicompare/internal/worker"
)

// runFlags are the comparison settings shared by compare and batch. Only
// flags the user actually set override the config.
type runFlags struct {
	threshold   float64
	identical   float64
	taxonomy    string
	extractor   string
	guidance    string
	llmProvider string
	llmModel    string
	summary     bool
	noCache     bool
	noFooter    bool
	noRobots    bool
	userAgent   string
	httpProxy   string
	httpsProxy  string
	timeout     time.Duration
}

func (f *runFlags) register(cmd *cobra.Command, defaultTimeout time.Duration) {
	fs := cmd.Flags()

	// Matching flags
	fs.Float64Var(&f.threshold, "threshold", model.DefaultMatchThreshold, "similarity above which two clauses match")
	fs.Float64Var(&f.identical, "identical-threshold", model.DefaultIdenticalThreshold, "similarity above which a matched pair is identical")
	fs.StringVar(&f.taxonomy, "taxonomy", "universal", "clause taxonomy (universal, benefit-liability)")

	// Extraction flags
	fs.StringVar(&f.extractor, "extractor", "heuristic", "clause extractor (heuristic, llm)")
	fs.StringVar(&f.guidance, "instructions", "", `extra guidance for the LLM extractor (e.g. "Focus on liability clauses")`)
	fs.BoolVar(&f.noCache, "no-cache", false, "disable the extraction cache")

	// LLM flags
	fs.StringVar(&f.llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama)")
	fs.StringVar(&f.llmModel, "llm-model", "", "LLM model name")
	fs.BoolVar(&f.summary, "summary", false, "add an LLM executive summary (never changes the verdict)")

	// HTTP flags
	fs.StringVar(&f.userAgent, "ua", "", "HTTP User-Agent for URL documents")
	fs.StringVar(&f.httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	fs.StringVar(&f.httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	fs.BoolVar(&f.noRobots, "no-robots", false, "ignore robots.txt for URL documents")

	// Output flags
	fs.BoolVar(&f.noFooter, "no-footer", false, "disable the disclaimer footer in reports")
	fs.DurationVar(&f.timeout, "timeout", defaultTimeout, "overall timeout")
}

func (f *runFlags) apply(cmd *cobra.Command, cfg *model.Config) {
	changed := cmd.Flags().Changed

	if changed("threshold") {
		cfg.Matching.MatchThreshold = f.threshold
	}
	if changed("identical-threshold") {
		cfg.Matching.IdenticalThreshold = f.identical
	}
	if changed("taxonomy") {
		cfg.Taxonomy = f.taxonomy
	}
	if changed("extractor") {
		cfg.Extraction.Mode = f.extractor
	}
	if changed("instructions") {
		cfg.Extraction.Instructions = f.guidance
	}
	if changed("no-cache") {
		cfg.Cache.Enabled = !f.noCache
	}
	if changed("llm-provider") {
		cfg.LLM.Provider = f.llmProvider
	}
	if changed("llm-model") {
		cfg.LLM.Model = f.llmModel
	}
	if changed("summary") {
		cfg.LLM.Summary = f.summary
	}
	if changed("ua") {
		cfg.HTTP.UserAgent = f.userAgent
	}
	if changed("http-proxy") {
		cfg.HTTP.HTTPProxy = f.httpProxy
	}
	if changed("https-proxy") {
		cfg.HTTP.HTTPSProxy = f.httpsProxy
	}
	if changed("no-robots") {
		cfg.HTTP.RespectRobots = !f.noRobots
	}
	if changed("no-footer") {
		cfg.Output.IncludeFooter = !f.noFooter
	}

	// Credentials follow the provider chosen on the command line
	applyProviderEnv(cfg)
}

// resolveConfig loads the layered config and applies the command's flags
func (f *runFlags) resolveConfig(cmd *cobra.Command) (*model.Config, *zap.Logger, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}
	f.apply(cmd, cfg)
	if verbose {
		cfg.Output.Verbose = true
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// buildPipeline wires the cache and the shared rate limiter into a pipeline
func buildPipeline(cfg *model.Config, limiter *worker.Limiter, logger *zap.Logger) (*pipeline.Pipeline, error) {
	opts := pipeline.Options{}
	if cfg.Cache.Enabled {
		opts.Cache = cache.New(cfg.Cache)
	}
	if limiter != nil {
		opts.Limiter = limiter
	}
	return pipeline.New(cfg, opts, logger)
}

var (
	compareFlags runFlags
	outJSON      string
	outMD        string
	outHTML      string
	clausesA     string
	clausesB     string
)

// compareCmd represents the compare command
var compareCmd = &cobra.Command{
	Use:   "compare <docA> <docB>",
	Short: "Compare two legal documents clause by clause",
	Long: `Compare extracts the clauses of two documents, pairs similar clauses
per category and reports the clauses unique to each side, followed by an
automated favorability verdict.

Documents are local text or HTML files, or http(s) URLs. Pre-extracted
clause sets (JSON objects of category -> list of clauses) can be given with
--clauses-a and --clauses-b instead.

Example:
  lexicompare compare lease-a.txt lease-b.txt
  lexicompare compare a.html https://example.com/terms --md report.md --html report.html
  lexicompare compare --clauses-a a.json --clauses-b b.json --json report.json
  lexicompare compare a.txt b.txt --extractor llm --llm-provider anthropic --summary
  lexicompare compare a.txt b.txt --extractor llm --instructions "Focus on liability clauses"`,
	Args: cobra.MaximumNArgs(2),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareFlags.register(compareCmd, 5*time.Minute)

	// Input flags
	compareCmd.Flags().StringVar(&clausesA, "clauses-a", "", "pre-extracted clause JSON for document A")
	compareCmd.Flags().StringVar(&clausesB, "clauses-b", "", "pre-extracted clause JSON for document B")

	// Output flags
	compareCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	compareCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	compareCmd.Flags().StringVar(&outHTML, "html", "", "output HTML path (optional)")
}

// validateCompareArgs accepts either two documents or both clause files
func validateCompareArgs(args []string, clausesA, clausesB string) error {
	useClauses := clausesA != "" || clausesB != ""
	switch {
	case useClauses && (clausesA == "" || clausesB == ""):
		return errors.New("--clauses-a and --clauses-b must be used together")
	case useClauses && len(args) > 0:
		return errors.New("give either two documents or --clauses-a/--clauses-b, not both")
	case !useClauses && len(args) != 2:
		return errors.New("compare needs two documents")
	}
	return nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	if err := validateCompareArgs(args, clausesA, clausesB); err != nil {
		return err
	}
	useClauses := clausesA != ""

	cfg, logger, err := compareFlags.resolveConfig(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), compareFlags.timeout)
	defer cancel()

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	p, err := buildPipeline(cfg, limiter, logger)
	if err != nil {
		return err
	}
	p.Renderer().SetOutput(cmd.OutOrStdout())

	var report *model.Report
	if useClauses {
		report, err = p.CompareClauseFiles(ctx, clausesA, clausesB)
	} else {
		if cfg.Output.Verbose {
			fmt.Fprintf(os.Stderr, "⚙️  Comparing %s and %s (extractor: %s)\n", args[0], args[1], cfg.Extraction.Mode)
		}
		report, err = p.Compare(ctx, args[0], args[1])
	}
	if err != nil {
		return fmt.Errorf("compare: %w", err)
	}

	out := pipeline.Outputs{JSON: outJSON, Markdown: outMD, HTML: outHTML}
	if err := p.RenderReport(report, out, cfg.Output.Verbose); err != nil {
		return err
	}

	for _, path := range []string{outJSON, outMD, outHTML} {
		if path != "" {
			fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", path)
		}
	}

	return nil
}
