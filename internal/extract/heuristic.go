package extract

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/lexicompare/internal/logging"
	"github.com/ppiankov/lexicompare/internal/model"
)

// keywordRule assigns a sentence containing any keyword to a category
type keywordRule struct {
	key      model.CategoryKey
	keywords []string
}

var (
	riskKeywords = []string{
		"liab", "indemnif", "damages", "penalt", "warrant", "at its own risk",
		"at your own risk", "breach", "loss of", "forfeit", "hold harmless",
	}
	termKeywords = []string{
		"terminat", "renew", "expir", "term of this", "notice period",
		"effective date", "cancel", "commence",
	}
	leverKeywords = []string{
		"discount", "negotiat", "waive", "rebate", "service credit", "incentive",
		"volume", "most favored", "price adjust", "free of charge",
	}
	rightKeywords = []string{
		"may ", "entitled", "right to", "has the right", "is permitted",
		"at its option", "option to", "at its discretion",
	}
	obligationKeywords = []string{
		"shall", "must", "agrees to", "is required to", "is responsible for",
		"will provide", "undertakes", "is obliged", "is obligated",
	}
)

// defaultRules are tried in order and the first match wins. Specific
// vocabulary (risk, term, levers) is checked before the generic modal verbs
// that appear in almost every clause.
var defaultRules = []keywordRule{
	{model.CategoryRisksLiabilities, riskKeywords},
	{model.CategoryLiabilities, riskKeywords},
	{model.CategoryTermTermination, termKeywords},
	{model.CategoryLevers, leverKeywords},
	{model.CategoryRights, rightKeywords},
	{model.CategoryBenefits, rightKeywords},
	{model.CategoryObligations, obligationKeywords},
	{model.CategoryLiabilities, obligationKeywords},
}

// HeuristicExtractor classifies sentences into taxonomy categories by keyword.
// It needs no network access and is fully deterministic.
type HeuristicExtractor struct {
	rules  []keywordRule
	logger *zap.Logger
}

// NewHeuristicExtractor keeps the rules whose category belongs to taxonomy
func NewHeuristicExtractor(taxonomy model.Taxonomy, logger *zap.Logger) (*HeuristicExtractor, error) {
	if err := taxonomy.Validate(); err != nil {
		return nil, fmt.Errorf("heuristic extractor: %w", err)
	}

	var rules []keywordRule
	for _, r := range defaultRules {
		if taxonomy.Has(r.key) {
			rules = append(rules, r)
		}
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("heuristic extractor: no keyword rules for taxonomy %q", taxonomy.Name)
	}

	return &HeuristicExtractor{rules: rules, logger: logging.OrNop(logger)}, nil
}

// Name returns the extractor name
func (e *HeuristicExtractor) Name() string {
	return "heuristic"
}

// Extract splits the document into sentences and classifies each one
func (e *HeuristicExtractor) Extract(ctx context.Context, doc model.Document) (model.ClauseSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sentences := SplitSentences(VisibleText(doc.Text, doc.ContentType))

	clauses := make(model.ClauseSet)
	seen := make(map[model.CategoryKey]map[string]bool)
	for _, sentence := range sentences {
		key, ok := e.classify(sentence)
		if !ok {
			continue
		}

		// Only the first copy of a sentence counts within a category
		dedupe := strings.ToLower(sentence)
		if seen[key] == nil {
			seen[key] = make(map[string]bool)
		}
		if seen[key][dedupe] {
			continue
		}
		seen[key][dedupe] = true
		clauses[key] = append(clauses[key], sentence)
	}

	e.logger.Debug("heuristic extraction finished",
		zap.String("document", doc.Name),
		zap.Int("sentences", len(sentences)),
		zap.Int("clauses", clauses.Count()))

	return clauses, nil
}

func (e *HeuristicExtractor) classify(sentence string) (model.CategoryKey, bool) {
	lower := strings.ToLower(sentence)
	for _, rule := range e.rules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lower, keyword) {
				return rule.key, true
			}
		}
	}
	return "", false
}
