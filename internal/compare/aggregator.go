// Package compare aligns the clause sets of two documents category by category
// and assembles the comparison report.
package compare

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/lexicompare/internal/logging"
	"github.com/ppiankov/lexicompare/internal/match"
	"github.com/ppiankov/lexicompare/internal/model"
)

// Default display names when the caller does not supply any
const (
	DefaultNameA = "Document A"
	DefaultNameB = "Document B"
)

// Aggregator runs the matcher once per taxonomy category
type Aggregator struct {
	taxonomy model.Taxonomy
	matcher  *match.Matcher
	logger   *zap.Logger
	now      func() time.Time
}

// NewAggregator creates an aggregator over the given taxonomy
func NewAggregator(taxonomy model.Taxonomy, matcher *match.Matcher, logger *zap.Logger) (*Aggregator, error) {
	if err := taxonomy.Validate(); err != nil {
		return nil, err
	}
	if matcher == nil {
		return nil, fmt.Errorf("matcher is required")
	}
	return &Aggregator{
		taxonomy: taxonomy,
		matcher:  matcher,
		logger:   logging.OrNop(logger),
		now:      time.Now,
	}, nil
}

// Taxonomy returns the taxonomy the aggregator compares under
func (a *Aggregator) Taxonomy() model.Taxonomy {
	return a.taxonomy
}

// Compare builds a report with one entry per taxonomy category, in taxonomy
// order. A category missing from either side counts as an empty list. Clauses
// are never matched across categories. Keys outside the taxonomy are ignored
// and reported as warnings.
func (a *Aggregator) Compare(categoriesA, categoriesB model.ClauseSet, docNames [2]string) *model.ComparisonReport {
	if docNames[0] == "" {
		docNames[0] = DefaultNameA
	}
	if docNames[1] == "" {
		docNames[1] = DefaultNameB
	}

	report := &model.ComparisonReport{
		ID:          uuid.New().String(),
		GeneratedAt: a.now().UTC(),
		DocNames:    docNames,
		Taxonomy:    a.taxonomy.Name,
		Thresholds: model.Thresholds{
			Match:     a.matcher.Threshold(),
			Identical: a.matcher.IdenticalThreshold(),
		},
		Categories: make([]model.CategoryResult, 0, len(a.taxonomy.Categories)),
	}

	report.Warnings = append(report.Warnings, a.unknownKeys(categoriesA, docNames[0])...)
	report.Warnings = append(report.Warnings, a.unknownKeys(categoriesB, docNames[1])...)

	for _, category := range a.taxonomy.Categories {
		comparison := a.matcher.Match(categoriesA[category.Key], categoriesB[category.Key])

		a.logger.Debug("category compared",
			zap.String("category", string(category.Key)),
			zap.Int("matched", len(comparison.Matched)),
			zap.Int("unique_a", len(comparison.UniqueToA)),
			zap.Int("unique_b", len(comparison.UniqueToB)),
		)

		report.Categories = append(report.Categories, model.CategoryResult{
			Key:        category.Key,
			Title:      category.Title,
			Liability:  category.Liability,
			Comparison: comparison,
		})
	}

	return report
}

func (a *Aggregator) unknownKeys(set model.ClauseSet, docName string) []string {
	var unknown []string
	for key := range set {
		if !a.taxonomy.Has(key) {
			unknown = append(unknown, string(key))
		}
	}
	sort.Strings(unknown)

	warnings := make([]string, 0, len(unknown))
	for _, key := range unknown {
		a.logger.Warn("ignoring category outside taxonomy",
			zap.String("document", docName),
			zap.String("category", key),
			zap.String("taxonomy", a.taxonomy.Name),
		)
		warnings = append(warnings, fmt.Sprintf("%s: category %q is not part of the %s taxonomy and was ignored (%d clauses)",
			docName, key, a.taxonomy.Name, len(set[model.CategoryKey(key)])))
	}
	return warnings
}
