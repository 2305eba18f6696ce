// Package verdict turns a comparison report into an automated favorability
// summary. The result is guidance for a human reviewer, never legal advice.
package verdict

import (
	"fmt"
	"math"

	"github.com/ppiankov/lexicompare/internal/model"
)

// Favorability bands, from document A's point of view
const (
	BandUnfavorable = "unfavorable"
	BandNeutral     = "neutral"
	BandFavorable   = "favorable"
)

// DefaultNoiseThreshold is the largest margin still reported as balanced
const DefaultNoiseThreshold = 1

// Policy decides which document a report favors.
// Implementations must not modify the report.
type Policy interface {
	Evaluate(report *model.ComparisonReport) model.Verdict
}

// UniqueClausePolicy counts unique clauses as advantages for their owner, except
// in liability categories where a unique clause counts for the other side.
type UniqueClausePolicy struct {
	noiseThreshold int
}

// NewUniqueClausePolicy creates the default policy. Margins up to noiseThreshold
// are reported as balanced.
func NewUniqueClausePolicy(noiseThreshold int) (*UniqueClausePolicy, error) {
	if noiseThreshold < 0 {
		return nil, fmt.Errorf("noise threshold must be >= 0, got %d", noiseThreshold)
	}
	return &UniqueClausePolicy{noiseThreshold: noiseThreshold}, nil
}

// Evaluate computes the verdict for report
func (p *UniqueClausePolicy) Evaluate(report *model.ComparisonReport) model.Verdict {
	v := model.Verdict{
		Disclaimer: model.Disclaimer,
		Tallies:    make([]model.CategoryTally, 0, len(report.Categories)),
	}

	for _, c := range report.Categories {
		tally := p.tally(c)
		v.AdvantageA += tally.PointsA
		v.AdvantageB += tally.PointsB
		v.Tallies = append(v.Tallies, tally)
	}

	diff := v.AdvantageA - v.AdvantageB
	v.Margin = abs(diff)
	v.Balanced = v.Margin <= p.noiseThreshold
	if !v.Balanced {
		if diff > 0 {
			v.Favored = model.OwnerA
		} else {
			v.Favored = model.OwnerB
		}
	}

	v.Favorability = Favorability(v.AdvantageA, v.AdvantageB)
	v.Band = Band(v.Favorability)
	v.Message = message(v, report.DocNames)

	return v
}

func (p *UniqueClausePolicy) tally(c model.CategoryResult) model.CategoryTally {
	uniqueA := len(c.Comparison.UniqueToA)
	uniqueB := len(c.Comparison.UniqueToB)

	if c.Liability {
		// A liability only one side carries is an advantage for the other
		return model.CategoryTally{
			Category:  c.Key,
			Liability: true,
			PointsA:   uniqueB,
			PointsB:   uniqueA,
			Formula:   "A += |unique_to_b|, B += |unique_to_a|",
		}
	}

	return model.CategoryTally{
		Category: c.Key,
		PointsA:  uniqueA,
		PointsB:  uniqueB,
		Formula:  "A += |unique_to_a|, B += |unique_to_b|",
	}
}

// Favorability maps advantage points to a 0-100 score for document A:
// 50 + 50 * (a - b) / (a + b), or 50 when neither side has points.
func Favorability(advantageA, advantageB int) int {
	total := advantageA + advantageB
	if total == 0 {
		return 50
	}
	return int(math.Round(50 + 50*float64(advantageA-advantageB)/float64(total)))
}

// Band classifies a favorability score
func Band(favorability int) string {
	switch {
	case favorability < 33:
		return BandUnfavorable
	case favorability < 66:
		return BandNeutral
	default:
		return BandFavorable
	}
}

func message(v model.Verdict, docNames [2]string) string {
	if v.Balanced {
		if v.Margin == 0 {
			return fmt.Sprintf("Balanced: neither document is clearly more favorable (%s each).", points(v.AdvantageA))
		}
		return fmt.Sprintf("Balanced: the documents differ by only %s (%s: %d, %s: %d).",
			points(v.Margin), docNames[0], v.AdvantageA, docNames[1], v.AdvantageB)
	}

	name := docNames[0]
	if v.Favored == model.OwnerB {
		name = docNames[1]
	}
	return fmt.Sprintf("%s appears more favorable by %s (%s: %d, %s: %d).",
		name, points(v.Margin), docNames[0], v.AdvantageA, docNames[1], v.AdvantageB)
}

func points(n int) string {
	if n == 1 {
		return "1 point"
	}
	return fmt.Sprintf("%d points", n)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
