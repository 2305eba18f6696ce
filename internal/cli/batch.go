package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/lexicompare/internal/pipeline"
	"github.com/ppiankov/lexicompare/internal/worker"
)

var (
	batchFlags  runFlags
	concurrency int
	outputDir   string
	batchHTML   bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <manifest>",
	Short: "Compare many document pairs in parallel",
	Long: `Batch compares every document pair listed in a manifest:
- YAML manifests (.yaml/.yml) hold a "pairs" list of {a, b} entries
- Any other file lists two whitespace-separated sources per line (# comments)
- Pairs run in parallel with a configurable worker count
- LLM and URL requests share one rate limiter
- One JSON and Markdown report is written per pair

Example:
  lexicompare batch pairs.yaml
  lexicompare batch pairs.txt --concurrency 8 --output-dir ./reports
  lexicompare batch pairs.yaml --extractor llm --llm-provider openai --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchFlags.register(batchCmd, 30*time.Minute)

	// Concurrency flags
	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./lexicompare-reports", "output directory for reports")
	batchCmd.Flags().BoolVar(&batchHTML, "html", false, "also write an HTML report per pair")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, logger, err := batchFlags.resolveConfig(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency.Workers = concurrency
	}
	workers := cfg.Concurrency.Workers

	ctx, cancel := context.WithTimeout(cmd.Context(), batchFlags.timeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Lexicompare Batch Comparison\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Manifest:     %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Extractor:    %s\n", cfg.Extraction.Mode)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchFlags.timeout)
	if cfg.LLM.Provider != "" {
		fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	}
	fmt.Fprintf(os.Stderr, "\n")

	pairs, err := worker.ReadPairsFromFile(file)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Loaded %d pairs\n\n", len(pairs))

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	// One limiter for every pipeline run keeps LLM and host budgets global
	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	p, err := buildPipeline(cfg, limiter, logger)
	if err != nil {
		return err
	}

	renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter)
	renderer.SetOutput(io.Discard)

	fmt.Fprintf(os.Stderr, "⚙️  Comparing pairs with %d workers...\n\n", workers)
	results := worker.NewBatchProcessor(p, workers, logger).ProcessPairs(ctx, pairs)

	successCount := 0
	failureCount := 0

	for _, result := range results {
		label := result.Pair.A + " vs " + result.Pair.B
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", label, result.Error)
			continue
		}

		base := filepath.Join(outputDir, reportBaseName(result.Index, result.Pair))
		out := pipeline.Outputs{JSON: base + ".json", Markdown: base + ".md"}
		if batchHTML {
			out.HTML = base + ".html"
		}
		if err := pipeline.RenderReport(renderer, result.Report, out, false, logger); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", label, err)
			continue
		}

		successCount++
		v := result.Report.Verdict
		fmt.Fprintf(os.Stderr, "✓ %s (favorability: %d/100, %s, %v)\n",
			label, v.Favorability, v.Band, result.Duration.Round(time.Millisecond))
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d pairs\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 {
		return fmt.Errorf("%d of %d comparisons failed", failureCount, len(results))
	}
	return nil
}

// reportBaseName names the report files of one pair, e.g.
// "003-lease-a.txt-vs-lease-b.txt"
func reportBaseName(index int, pair worker.Pair) string {
	return fmt.Sprintf("%03d-%s-vs-%s", index+1,
		sanitizeFilename(pipeline.DisplayName(pair.A)),
		sanitizeFilename(pipeline.DisplayName(pair.B)))
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "-",
)

// sanitizeFilename makes s safe to use as one path element
func sanitizeFilename(s string) string {
	s = filenameReplacer.Replace(strings.TrimSpace(s))
	if s == "" || s == "." || s == ".." {
		s = "document"
	}

	// Limit length
	if r := []rune(s); len(r) > 60 {
		s = string(r[:60])
	}

	return s
}
