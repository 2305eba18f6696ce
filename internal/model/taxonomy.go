package model

import (
	"fmt"
	"sort"
	"strings"
)

// Category describes one bucket of a taxonomy
type Category struct {
	Key       CategoryKey `json:"key" yaml:"key"`
	Title     string      `json:"title" yaml:"title"`
	Liability bool        `json:"liability,omitempty" yaml:"liability,omitempty"` // Unique clauses here count against their owner
}

// Taxonomy is the fixed, ordered set of categories both documents are compared under
type Taxonomy struct {
	Name       string     `json:"name" yaml:"name"`
	Categories []Category `json:"categories" yaml:"categories"`
}

// Keys returns the category keys in taxonomy order
func (t Taxonomy) Keys() []CategoryKey {
	keys := make([]CategoryKey, len(t.Categories))
	for i, c := range t.Categories {
		keys[i] = c.Key
	}
	return keys
}

// Has reports whether key belongs to the taxonomy
func (t Taxonomy) Has(key CategoryKey) bool {
	_, ok := t.Lookup(key)
	return ok
}

// Lookup returns the category for key
func (t Taxonomy) Lookup(key CategoryKey) (Category, bool) {
	for _, c := range t.Categories {
		if c.Key == key {
			return c, true
		}
	}
	return Category{}, false
}

// Validate checks that the taxonomy is usable: named, non-empty, no duplicate keys
func (t Taxonomy) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("taxonomy name is required")
	}
	if len(t.Categories) == 0 {
		return fmt.Errorf("taxonomy %q has no categories", t.Name)
	}
	seen := make(map[CategoryKey]bool, len(t.Categories))
	for _, c := range t.Categories {
		if c.Key == "" {
			return fmt.Errorf("taxonomy %q has a category with an empty key", t.Name)
		}
		if seen[c.Key] {
			return fmt.Errorf("taxonomy %q repeats category %q", t.Name, c.Key)
		}
		seen[c.Key] = true
	}
	return nil
}

// UniversalTaxonomy is the default five-bucket taxonomy
func UniversalTaxonomy() Taxonomy {
	return Taxonomy{
		Name: "universal",
		Categories: []Category{
			{Key: CategoryObligations, Title: "Obligations"},
			{Key: CategoryRights, Title: "Rights"},
			{Key: CategoryRisksLiabilities, Title: "Risks / Liabilities", Liability: true},
			{Key: CategoryTermTermination, Title: "Term & Termination"},
			{Key: CategoryLevers, Title: "Negotiation Levers"},
		},
	}
}

// BenefitLiabilityTaxonomy is the three-bucket benefit / liability / lever taxonomy
func BenefitLiabilityTaxonomy() Taxonomy {
	return Taxonomy{
		Name: "benefit-liability",
		Categories: []Category{
			{Key: CategoryBenefits, Title: "Benefits"},
			{Key: CategoryLiabilities, Title: "Liabilities", Liability: true},
			{Key: CategoryLevers, Title: "Negotiation Levers"},
		},
	}
}

var taxonomies = map[string]func() Taxonomy{
	"universal":         UniversalTaxonomy,
	"benefit-liability": BenefitLiabilityTaxonomy,
}

// TaxonomyByName returns a built-in taxonomy
func TaxonomyByName(name string) (Taxonomy, error) {
	build, ok := taxonomies[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Taxonomy{}, fmt.Errorf("unknown taxonomy: %s (supported: %s)", name, strings.Join(TaxonomyNames(), ", "))
	}
	return build(), nil
}

// TaxonomyNames lists the built-in taxonomy names
func TaxonomyNames() []string {
	names := make([]string, 0, len(taxonomies))
	for name := range taxonomies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
