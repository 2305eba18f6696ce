package model

import "time"

// Disclaimer accompanies every verdict and rendered report
const Disclaimer = "This is an automated comparison for informational purposes only. It is not legal advice; consult a qualified professional."

// ComparisonReport is the output of the comparison engine for one document pair.
// It is built once per request and not modified afterwards.
type ComparisonReport struct {
	ID          string           `json:"id"`                 // Unique report identifier
	GeneratedAt time.Time        `json:"generated_at"`       // When the comparison ran
	DocNames    [2]string        `json:"doc_names"`          // Display names of document A and B
	Taxonomy    string           `json:"taxonomy"`           // Taxonomy the clauses were bucketed under
	Thresholds  Thresholds       `json:"thresholds"`         // Thresholds the matcher used
	Categories  []CategoryResult `json:"categories"`         // One entry per taxonomy category, in taxonomy order
	Warnings    []string         `json:"warnings,omitempty"` // Non-fatal input oddities (e.g. ignored categories)
}

// Category returns the comparison for key
func (r *ComparisonReport) Category(key CategoryKey) (CategoryComparison, bool) {
	for _, c := range r.Categories {
		if c.Key == key {
			return c.Comparison, true
		}
	}
	return CategoryComparison{}, false
}

// HasContent reports whether any category holds at least one clause
func (r *ComparisonReport) HasContent() bool {
	for _, c := range r.Categories {
		if !c.Comparison.IsEmpty() {
			return true
		}
	}
	return false
}

// CategoryResult is one category's comparison, carried with its taxonomy metadata
type CategoryResult struct {
	Key        CategoryKey        `json:"key"`
	Title      string             `json:"title"`
	Liability  bool               `json:"liability,omitempty"`
	Comparison CategoryComparison `json:"comparison"`
}

// Thresholds records the similarity thresholds applied to a comparison
type Thresholds struct {
	Match     float64 `json:"match"`     // Above this two clauses are the same provision
	Identical float64 `json:"identical"` // Above this a matched pair is unchanged verbatim
}

// Verdict is the automated favorability summary of a comparison
type Verdict struct {
	AdvantageA   int             `json:"advantage_a"`       // Points for document A
	AdvantageB   int             `json:"advantage_b"`       // Points for document B
	Margin       int             `json:"margin"`            // |AdvantageA - AdvantageB|
	Balanced     bool            `json:"balanced"`          // Margin within the noise threshold
	Favored      Owner           `json:"favored,omitempty"` // Empty when balanced
	Favorability int             `json:"favorability"`      // 0-100 from document A's point of view
	Band         string          `json:"band"`              // unfavorable, neutral, favorable (for A)
	Message      string          `json:"message"`           // One-line human readable verdict
	Disclaimer   string          `json:"disclaimer"`
	Tallies      []CategoryTally `json:"tallies"` // Per-category breakdown
}

// CategoryTally is the transparent per-category contribution to a verdict
type CategoryTally struct {
	Category  CategoryKey `json:"category"`
	Liability bool        `json:"liability"`
	PointsA   int         `json:"points_a"`
	PointsB   int         `json:"points_b"`
	Formula   string      `json:"formula"`
}

// ExtractionMeta describes how one document's clauses were obtained
type ExtractionMeta struct {
	Document  string `json:"document"`
	Extractor string `json:"extractor"` // heuristic, llm:<provider>, clauses-file
	Clauses   int    `json:"clauses"`
	Cached    bool   `json:"cached,omitempty"`
}

// Report is the complete rendered artifact for one comparison
type Report struct {
	Comparison *ComparisonReport `json:"comparison"`
	Verdict    Verdict           `json:"verdict"`
	Extraction []ExtractionMeta  `json:"extraction,omitempty"`
	Principles Principles        `json:"principles"`
	LLM        *LLMSummary       `json:"llm,omitempty"` // Optional, never affects the verdict
}

// Principles documents the guarantees a report is produced under
type Principles struct {
	NonNormative  bool `json:"non_normative"` // Guidance, not a legal judgment
	Deterministic bool `json:"deterministic"` // Same clauses always give the same comparison
	GreedyMatch   bool `json:"greedy_match"`  // Pairing is greedy, not globally optimal
}

// DefaultPrinciples returns the standard principles
func DefaultPrinciples() Principles {
	return Principles{
		NonNormative:  true,
		Deterministic: true,
		GreedyMatch:   true,
	}
}

// LLMSummary contains the optional LLM-generated executive summary
type LLMSummary struct {
	Enabled   bool     `json:"enabled"`
	Provider  string   `json:"provider,omitempty"`
	Model     string   `json:"model,omitempty"`
	SummaryMD string   `json:"summary_md,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}
