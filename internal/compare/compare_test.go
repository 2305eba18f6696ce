package compare

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/lexicompare/internal/match"
	"github.com/ppiankov/lexicompare/internal/model"
)

func newAggregator(t *testing.T, threshold float64) *Aggregator {
	t.Helper()
	m, err := match.NewMatcher(threshold)
	require.NoError(t, err)
	agg, err := NewAggregator(model.UniversalTaxonomy(), m, nil)
	require.NoError(t, err)
	return agg
}

func TestNewAggregator_Validation(t *testing.T) {
	m, err := match.NewMatcher(0.7)
	require.NoError(t, err)

	_, err = NewAggregator(model.Taxonomy{Name: "empty"}, m, nil)
	assert.Error(t, err)

	_, err = NewAggregator(model.UniversalTaxonomy(), nil, nil)
	assert.Error(t, err)
}

func TestCompare_CategoriesInTaxonomyOrder(t *testing.T) {
	agg := newAggregator(t, 0.7)

	report := agg.Compare(
		model.ClauseSet{model.CategoryLevers: {"Discount for annual prepayment"}},
		model.ClauseSet{model.CategoryObligations: {"Vendor shall provide support"}},
		[2]string{"msa-v1.pdf", "msa-v2.pdf"},
	)

	require.Len(t, report.Categories, 5)
	for i, key := range model.UniversalTaxonomy().Keys() {
		assert.Equal(t, key, report.Categories[i].Key)
	}
	assert.Equal(t, "Risks / Liabilities", report.Categories[2].Title)
	assert.True(t, report.Categories[2].Liability)
	assert.Equal(t, [2]string{"msa-v1.pdf", "msa-v2.pdf"}, report.DocNames)
	assert.Equal(t, "universal", report.Taxonomy)
	assert.Equal(t, model.Thresholds{Match: 0.7, Identical: model.DefaultIdenticalThreshold}, report.Thresholds)
	assert.Empty(t, report.Warnings)

	_, err := uuid.Parse(report.ID)
	assert.NoError(t, err)
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestCompare_MissingCategoriesAreEmpty(t *testing.T) {
	agg := newAggregator(t, 0.7)

	report := agg.Compare(nil, model.ClauseSet{}, [2]string{"a", "b"})

	require.Len(t, report.Categories, 5)
	for _, c := range report.Categories {
		assert.True(t, c.Comparison.IsEmpty(), "category %s", c.Key)
	}
	assert.False(t, report.HasContent())

	risks, ok := report.Category(model.CategoryRisksLiabilities)
	require.True(t, ok)
	assert.NotNil(t, risks.Matched)
}

func TestCompare_NoCrossCategoryMatching(t *testing.T) {
	agg := newAggregator(t, 0.3)

	clause := "Client may audit the vendor once per year"
	report := agg.Compare(
		model.ClauseSet{model.CategoryObligations: {clause}},
		model.ClauseSet{model.CategoryRights: {clause}},
		[2]string{"a", "b"},
	)

	obligations, _ := report.Category(model.CategoryObligations)
	assert.Empty(t, obligations.Matched)
	assert.Len(t, obligations.UniqueToA, 1)
	assert.Empty(t, obligations.UniqueToB)

	rights, _ := report.Category(model.CategoryRights)
	assert.Empty(t, rights.Matched)
	assert.Empty(t, rights.UniqueToA)
	assert.Len(t, rights.UniqueToB, 1)
}

func TestCompare_EveryClauseAccountedFor(t *testing.T) {
	agg := newAggregator(t, 0.5)

	a := model.ClauseSet{
		model.CategoryObligations:      {"Provider shall deliver by Dec 31", "Client shall pay $10,000"},
		model.CategoryRisksLiabilities: {"Client indemnifies provider for all claims", "Unlimited liability for data loss"},
		model.CategoryTermTermination:  {"Either party may terminate with 30 days notice"},
	}
	b := model.ClauseSet{
		model.CategoryObligations:     {"Provider must deliver before December 31"},
		model.CategoryRights:          {"Client owns all deliverables"},
		model.CategoryTermTermination: {"Either party may terminate on 60 days written notice", "Auto-renews yearly"},
	}

	report := agg.Compare(a, b, [2]string{"a", "b"})

	for _, c := range report.Categories {
		assert.Equal(t, len(a[c.Key])+len(b[c.Key]), c.Comparison.ClauseCount(), "category %s", c.Key)
	}
	assert.True(t, report.HasContent())
}

func TestCompare_UnknownCategoriesWarn(t *testing.T) {
	agg := newAggregator(t, 0.7)

	report := agg.Compare(
		model.ClauseSet{"Payment_Terms": {"net 30"}, model.CategoryRights: {"x"}},
		model.ClauseSet{"Benefits": {"free support"}, "Misc": {}},
		[2]string{"left.txt", "right.txt"},
	)

	require.Len(t, report.Warnings, 3)
	assert.Contains(t, report.Warnings[0], "left.txt")
	assert.Contains(t, report.Warnings[0], `"Payment_Terms"`)
	assert.Contains(t, report.Warnings[1], `"Benefits"`)
	assert.Contains(t, report.Warnings[2], `"Misc"`)

	_, ok := report.Category("Payment_Terms")
	assert.False(t, ok)
}

func TestCompare_DefaultDocNames(t *testing.T) {
	report := newAggregator(t, 0.7).Compare(nil, nil, [2]string{"", "second"})
	assert.Equal(t, [2]string{DefaultNameA, "second"}, report.DocNames)
}

func TestCompare_BenefitLiabilityTaxonomy(t *testing.T) {
	m, err := match.NewMatcher(0.7)
	require.NoError(t, err)
	agg, err := NewAggregator(model.BenefitLiabilityTaxonomy(), m, nil)
	require.NoError(t, err)

	report := agg.Compare(
		model.ClauseSet{model.CategoryBenefits: {"Free onboarding"}},
		model.ClauseSet{model.CategoryLiabilities: {"Late fee of 5% per month"}},
		[2]string{"a", "b"},
	)

	require.Len(t, report.Categories, 3)
	assert.Equal(t, "benefit-liability", report.Taxonomy)
	assert.True(t, report.Categories[1].Liability)
}

func TestCompare_ReportIsJSONSerializable(t *testing.T) {
	agg := newAggregator(t, 0.3)
	report := agg.Compare(
		model.ClauseSet{model.CategoryObligations: {"Provider shall deliver by Dec 31"}},
		model.ClauseSet{model.CategoryObligations: {"Provider must deliver before December 31"}},
		[2]string{"a", "b"},
	)

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	categories := decoded["categories"].([]any)
	first := categories[0].(map[string]any)["comparison"].(map[string]any)
	assert.Len(t, first["matched"], 1)
	assert.Equal(t, []any{}, first["unique_to_a"])
}

func TestDecodeClauseSet(t *testing.T) {
	set, err := DecodeClauseSet([]byte(`{
		"Obligations": ["Provider shall deliver", "Client shall pay"],
		"Rights": [],
		"Levers": null
	}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"Provider shall deliver", "Client shall pay"}, set[model.CategoryObligations])
	assert.Equal(t, []string{}, set[model.CategoryRights])
	_, hasLevers := set[model.CategoryLevers]
	assert.False(t, hasLevers)
}

func TestDecodeClauseSet_InvalidShapes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{"not json", `{"Obligations": [`, "not valid JSON"},
		{"array root", `["a", "b"]`, "got array"},
		{"string root", `"clauses"`, "got string"},
		{"list is string", `{"Obligations": "pay rent"}`, "Obligations must be an array of strings, got string"},
		{"list is object", `{"Rights": {"a": 1}}`, "Rights must be an array of strings, got object"},
		{"number element", `{"Obligations": ["pay rent", 42]}`, "Obligations[1] must be a string, got number"},
		{"null element", `{"Levers": [null]}`, "Levers[0] must be a string, got null"},
		{"nested array", `{"Levers": [["a"]]}`, "Levers[0] must be a string, got array"},
		{"duplicate key", `{"Rights": ["a"], "Rights": ["b"]}`, "Rights appears more than once"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeClauseSet([]byte(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadClauseSet(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "a.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"Rights": ["Terminate for convenience"]}`), 0644))

	set, err := LoadClauseSet(good)
	require.NoError(t, err)
	assert.Equal(t, 1, set.Count())

	bad := filepath.Join(dir, "b.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"Rights": [1]}`), 0644))
	_, err = LoadClauseSet(bad)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "b.json")

	_, err = LoadClauseSet(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
