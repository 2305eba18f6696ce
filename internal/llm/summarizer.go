package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/lexicompare/internal/logging"
	"github.com/ppiankov/lexicompare/internal/model"
	"github.com/ppiankov/lexicompare/internal/similarity"
)

const summarySystemPrompt = "You summarize automated contract comparisons for a non-lawyer reader. You never give legal advice and never change the verdict you are given."

// maxPromptClauses caps the unique clauses listed per side and category
const maxPromptClauses = 5

// Summarizer writes an optional executive summary of a finished comparison.
// The summary never influences the verdict.
type Summarizer struct {
	provider Provider
	config   Config
	logger   *zap.Logger
}

// NewSummarizer creates a summarizer. A nil provider disables it.
func NewSummarizer(provider Provider, config Config, logger *zap.Logger) *Summarizer {
	return &Summarizer{
		provider: provider,
		config:   config,
		logger:   logging.OrNop(logger),
	}
}

// IsEnabled returns true if a provider is configured
func (s *Summarizer) IsEnabled() bool {
	return s.provider != nil
}

// ProviderName returns the configured provider name, or "" when disabled
func (s *Summarizer) ProviderName() string {
	if s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

// GenerateSummary asks the provider for a short summary of report. It returns
// (nil, nil) when disabled. Provider failures are reported as warnings on the
// returned summary, never as errors.
func (s *Summarizer) GenerateSummary(ctx context.Context, report model.Report) (*model.LLMSummary, error) {
	if s.provider == nil {
		return nil, nil
	}

	summary := &model.LLMSummary{
		Enabled:  true,
		Provider: s.provider.Name(),
		Model:    s.config.Model,
	}

	if report.Comparison == nil {
		summary.Warnings = append(summary.Warnings, "Summary skipped: report has no comparison")
		return summary, nil
	}

	resp, err := s.provider.Generate(ctx, GenerateRequest{
		System:    summarySystemPrompt,
		Prompt:    BuildSummaryPrompt(report),
		MaxTokens: s.config.MaxTokens,
	})
	if err != nil {
		s.logger.Warn("summary generation failed", zap.String("provider", summary.Provider), zap.Error(err))
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("Summary generation failed: %v", err))
		return summary, nil
	}

	summary.SummaryMD = resp.Text
	if resp.Model != "" {
		summary.Model = resp.Model
	}
	if resp.TokensUsed > 0 {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("Tokens used: %d", resp.TokensUsed))
	}

	verified, unverified := verifyQuotes(resp.Text, report.Comparison)
	if verified > 0 {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("Verified %d quoted clauses against the compared documents", verified))
	}
	for _, q := range unverified {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("Quoted text not found in either document: %q", q))
	}

	return summary, nil
}

// BuildSummaryPrompt lists the verdict and the clauses unique to each side
func BuildSummaryPrompt(report model.Report) string {
	c := report.Comparison
	var b strings.Builder

	b.WriteString("Two contracts were compared clause by clause.\n")
	fmt.Fprintf(&b, "Document A: %s\nDocument B: %s\n\n", c.DocNames[0], c.DocNames[1])
	fmt.Fprintf(&b, "Automated verdict (do not change it): %s\n\n", report.Verdict.Message)

	b.WriteString("Per category (matched / only in A / only in B):\n")
	for _, cat := range c.Categories {
		cmp := cat.Comparison
		fmt.Fprintf(&b, "\n## %s: %d / %d / %d\n", cat.Title, len(cmp.Matched), len(cmp.UniqueToA), len(cmp.UniqueToB))
		writeClauses(&b, "Only in A", cmp.UniqueToA)
		writeClauses(&b, "Only in B", cmp.UniqueToB)
	}

	b.WriteString(`
RULES:
1. Write 3-5 sentences in Markdown for a non-lawyer.
2. Only quote clause text that appears above, in double quotes.
3. Do not give legal advice and do not contradict the automated verdict.
4. Point out the most consequential differences, especially in risk categories.`)

	return b.String()
}

func writeClauses(b *strings.Builder, label string, clauses []model.UniqueClause) {
	if len(clauses) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for i, c := range clauses {
		if i >= maxPromptClauses {
			fmt.Fprintf(b, "- ... and %d more\n", len(clauses)-maxPromptClauses)
			break
		}
		fmt.Fprintf(b, "- %s\n", c.Text)
	}
}

var quotePattern = regexp.MustCompile(`"([^"]{12,})"`)

// verifyQuotes checks every sufficiently long quoted passage against the
// report's clauses
func verifyQuotes(text string, report *model.ComparisonReport) (int, []string) {
	var corpus []string
	for _, cat := range report.Categories {
		for _, p := range cat.Comparison.Matched {
			corpus = append(corpus, similarity.Normalize(p.TextA), similarity.Normalize(p.TextB))
		}
		for _, u := range cat.Comparison.UniqueToA {
			corpus = append(corpus, similarity.Normalize(u.Text))
		}
		for _, u := range cat.Comparison.UniqueToB {
			corpus = append(corpus, similarity.Normalize(u.Text))
		}
	}

	verified := 0
	var unverified []string
	for _, m := range quotePattern.FindAllStringSubmatch(text, -1) {
		quote := strings.TrimRight(strings.TrimSpace(similarity.Normalize(m[1])), ".,;:")
		found := false
		for _, clause := range corpus {
			if strings.Contains(clause, quote) {
				found = true
				break
			}
		}
		if found {
			verified++
		} else {
			unverified = append(unverified, m[1])
		}
	}
	return verified, unverified
}

// RenderSeparateMarkdown renders the summary as a standalone document, kept
// apart from the deterministic report
func RenderSeparateMarkdown(summary *model.LLMSummary) string {
	if summary == nil || !summary.Enabled {
		return ""
	}

	var b strings.Builder
	b.WriteString("# LLM Summary\n\n")
	b.WriteString("> **GENERATED CONTENT.** Written by a language model from the comparison report. ")
	b.WriteString("The matching and the verdict were determined independently and deterministically; this text is not legal advice.\n\n")

	fmt.Fprintf(&b, "- **Provider:** %s\n", summary.Provider)
	if summary.Model != "" {
		fmt.Fprintf(&b, "- **Model:** %s\n", summary.Model)
	}
	b.WriteString("\n")

	if summary.SummaryMD == "" {
		b.WriteString("_No summary generated._\n")
	} else {
		b.WriteString(summary.SummaryMD)
		b.WriteString("\n")
	}

	if len(summary.Warnings) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, w := range summary.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	return b.String()
}
