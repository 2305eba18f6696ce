// Package match pairs the clauses of two documents within one category.
//
// Pairing is greedy: clauses of A are visited in order and each takes the most
// similar clause of B that is still available. The result is deterministic but
// not globally optimal; an early clause of A can claim a B clause that a later
// clause would have matched better. Clause lists are short enough that an
// approximate alignment is adequate for human review.
package match

import (
	"fmt"

	"github.com/ppiankov/lexicompare/internal/model"
	"github.com/ppiankov/lexicompare/internal/similarity"
)

// Matcher pairs clause lists using a similarity threshold
type Matcher struct {
	threshold          float64
	identicalThreshold float64
}

// Option configures a Matcher
type Option func(*Matcher)

// WithIdenticalThreshold marks pairs scoring above t as identical
func WithIdenticalThreshold(t float64) Option {
	return func(m *Matcher) {
		m.identicalThreshold = t
	}
}

// NewMatcher creates a matcher. Pairs must score strictly above threshold.
func NewMatcher(threshold float64, opts ...Option) (*Matcher, error) {
	m := &Matcher{
		threshold:          threshold,
		identicalThreshold: model.DefaultIdenticalThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}

	if !(m.threshold >= 0 && m.threshold <= 1) {
		return nil, fmt.Errorf("match threshold must be within [0, 1], got %v", m.threshold)
	}
	if !(m.identicalThreshold >= 0 && m.identicalThreshold <= 1) {
		return nil, fmt.Errorf("identical threshold must be within [0, 1], got %v", m.identicalThreshold)
	}

	return m, nil
}

// Threshold returns the match threshold
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// IdenticalThreshold returns the identical threshold
func (m *Matcher) IdenticalThreshold() float64 {
	return m.identicalThreshold
}

// Match partitions listA and listB into matched pairs and unique clauses.
// Matched pairs and unique-to-A clauses follow A's order; unique-to-B clauses
// follow B's order. Duplicate texts are matched independently.
func (m *Matcher) Match(listA, listB []string) model.CategoryComparison {
	result := model.CategoryComparison{
		Matched:   []model.MatchedPair{},
		UniqueToA: []model.UniqueClause{},
		UniqueToB: []model.UniqueClause{},
	}

	profilesB := make([]similarity.Profile, len(listB))
	for i, b := range listB {
		profilesB[i] = similarity.NewProfile(b)
	}
	taken := make([]bool, len(listB))

	for _, a := range listA {
		pa := similarity.NewProfile(a)

		best := -1
		bestScore := 0.0
		for j := range listB {
			if taken[j] {
				continue
			}
			// Strict comparison keeps the earliest B clause on ties
			if s := similarity.Compare(pa, profilesB[j]); best < 0 || s > bestScore {
				best, bestScore = j, s
			}
		}

		if best >= 0 && bestScore > m.threshold {
			taken[best] = true
			result.Matched = append(result.Matched, model.MatchedPair{
				TextA:      a,
				TextB:      listB[best],
				Similarity: bestScore,
				Identical:  bestScore > m.identicalThreshold,
			})
			continue
		}

		result.UniqueToA = append(result.UniqueToA, model.UniqueClause{Text: a, Owner: model.OwnerA})
	}

	for j, b := range listB {
		if !taken[j] {
			result.UniqueToB = append(result.UniqueToB, model.UniqueClause{Text: b, Owner: model.OwnerB})
		}
	}

	return result
}
