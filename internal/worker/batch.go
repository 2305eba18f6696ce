package worker

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/lexicompare/internal/logging"
	"github.com/ppiankov/lexicompare/internal/model"
)

// Comparer defines the interface for comparing two documents
type Comparer interface {
	Compare(ctx context.Context, sourceA, sourceB string) (*model.Report, error)
}

// Pair names the two documents of one comparison
type Pair struct {
	A string `yaml:"a"`
	B string `yaml:"b"`
}

// Manifest is the YAML batch file format
type Manifest struct {
	Pairs []Pair `yaml:"pairs"`
}

// CompareJob represents one pair comparison
type CompareJob struct {
	Index    int
	Pair     Pair
	Comparer Comparer
}

// Execute executes the comparison job
func (j *CompareJob) Execute(ctx context.Context) Result {
	start := time.Now()
	report, err := j.Comparer.Compare(ctx, j.Pair.A, j.Pair.B)
	return &CompareResult{
		Index:    j.Index,
		Pair:     j.Pair,
		Report:   report,
		Error:    err,
		Duration: time.Since(start),
	}
}

// CompareResult represents the result of a comparison job
type CompareResult struct {
	Index    int
	Pair     Pair
	Report   *model.Report
	Error    error
	Duration time.Duration
}

// GetError returns the error from the comparison result
func (r *CompareResult) GetError() error {
	return r.Error
}

// BatchProcessor compares many document pairs concurrently
type BatchProcessor struct {
	comparer    Comparer
	concurrency int
	logger      *zap.Logger
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(comparer Comparer, concurrency int, logger *zap.Logger) *BatchProcessor {
	return &BatchProcessor{
		comparer:    comparer,
		concurrency: concurrency,
		logger:      logging.OrNop(logger),
	}
}

// ProcessPairs compares every pair and returns the results in input order.
// Pairs that never ran because ctx was cancelled carry the context error.
func (b *BatchProcessor) ProcessPairs(ctx context.Context, pairs []Pair) []*CompareResult {
	if len(pairs) == 0 {
		return []*CompareResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, pair := range pairs {
		if !pool.Submit(&CompareJob{Index: i, Pair: pair, Comparer: b.comparer}) {
			break
		}
	}

	results := pool.Wait()

	ordered := make([]*CompareResult, len(pairs))
	for _, result := range results {
		r := result.(*CompareResult)
		ordered[r.Index] = r
	}
	for i, r := range ordered {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			ordered[i] = &CompareResult{Index: i, Pair: pairs[i], Error: err}
		}
	}

	failed := 0
	for _, r := range ordered {
		if r.Error != nil {
			failed++
		}
	}
	b.logger.Info("batch finished",
		zap.Int("pairs", len(pairs)),
		zap.Int("failed", failed))

	return ordered
}

// ProcessFile reads a manifest and processes its pairs concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*CompareResult, error) {
	pairs, err := ReadPairsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read pairs: %w", err)
	}

	return b.ProcessPairs(ctx, pairs), nil
}

// ReadPairsFromFile reads a batch manifest. Files ending in .yaml or .yml
// use the Manifest format; anything else is read as text with two
// whitespace-separated sources per line.
func ReadPairsFromFile(filePath string) ([]Pair, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		return ParseManifest(data)
	default:
		return ParsePairLines(data)
	}
}

// ParseManifest decodes a YAML manifest
func ParseManifest(data []byte) ([]Pair, error) {
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	var pairs []Pair
	seen := make(map[Pair]bool)
	for i, p := range manifest.Pairs {
		p = Pair{A: strings.TrimSpace(p.A), B: strings.TrimSpace(p.B)}
		if p.A == "" || p.B == "" {
			return nil, fmt.Errorf("pair %d: both a and b are required", i+1)
		}
		if !seen[p] {
			seen[p] = true
			pairs = append(pairs, p)
		}
	}
	return pairs, nil
}

// ParsePairLines reads "sourceA sourceB" lines, skipping blanks and # comments
func ParsePairLines(data []byte) ([]Pair, error) {
	var pairs []Pair
	seen := make(map[Pair]bool)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected two sources, got %d", lineNo, len(fields))
		}

		// Deduplicate pairs
		p := Pair{A: fields[0], B: fields[1]}
		if !seen[p] {
			seen[p] = true
			pairs = append(pairs, p)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return pairs, nil
}
