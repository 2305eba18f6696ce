package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/lexicompare/internal/cache"
	"github.com/ppiankov/lexicompare/internal/compare"
	"github.com/ppiankov/lexicompare/internal/llm"
	"github.com/ppiankov/lexicompare/internal/model"
)

const leaseText = `The Tenant shall pay rent on the first day of each month.
The Landlord may enter the premises with 24 hours notice. The Tenant shall indemnify the Landlord against all claims.

This lease terminates on December 31, 2026. Rent is discounted by 5% for annual prepayment. Hello world.
The parties met in the city of Springfield. The Tenant shall pay rent on the first day of each month.`

func TestSplitSentences(t *testing.T) {
	sentences := SplitSentences("Section 4.2 applies to every renewal of this lease. Short one.\n\nA new paragraph without a terminator\nthat continues here")

	assert.Equal(t, []string{
		"Section 4.2 applies to every renewal of this lease.",
		"A new paragraph without a terminator that continues here",
	}, sentences)
}

func TestSplitSentences_LongSentenceIsSplit(t *testing.T) {
	unit := "the Tenant shall indemnify the Landlord against all losses, "
	long := strings.TrimSpace(strings.Repeat(unit, 30)) + " and all reasonable legal costs."
	require.Greater(t, utf8.RuneCountInString(long), maxSentenceLen)

	sentences := SplitSentences(long)
	require.Greater(t, len(sentences), 1)
	for _, s := range sentences {
		assert.LessOrEqual(t, utf8.RuneCountInString(s), maxSentenceLen)
		assert.True(t, strings.HasSuffix(s, ",") || strings.HasSuffix(s, "."), s)
	}
	assert.Equal(t, long, strings.Join(sentences, " "))
}

func TestSplitSentences_LongSentenceWithoutCommas(t *testing.T) {
	long := strings.TrimSpace(strings.Repeat("the Tenant shall pay every charge ", 40))
	require.Greater(t, utf8.RuneCountInString(long), maxSentenceLen)

	sentences := SplitSentences(long)
	require.Len(t, sentences, 3)
	for _, s := range sentences {
		assert.LessOrEqual(t, utf8.RuneCountInString(s), maxSentenceLen)
	}
	assert.Equal(t, long, strings.Join(sentences, " "))
}

func TestVisibleText_HTML(t *testing.T) {
	content := `<html><head><title>Lease</title><style>p{}</style></head><body>
		<h1>Lease</h1>
		<p>The Tenant shall keep the premises clean</p>
		<script>var x = "The Tenant shall not see this";</script>
		<p>The Landlord may inspect the premises yearly</p>
	</body></html>`

	text := VisibleText(content, "")
	assert.Contains(t, text, "The Tenant shall keep the premises clean")
	assert.NotContains(t, text, "not see this")
	assert.NotContains(t, text, "p{}")

	sentences := SplitSentences(text)
	assert.Equal(t, []string{
		"The Tenant shall keep the premises clean",
		"The Landlord may inspect the premises yearly",
	}, sentences)
}

func TestVisibleText_MainContent(t *testing.T) {
	content := `<html><body>
		<nav><p>Contact us for a quote on your policy today</p></nav>
		<main><p>The Insurer shall pay claims within 30 days</p></main>
		<footer><p>All rights reserved by the company forever</p></footer>
	</body></html>`

	assert.Equal(t, []string{"The Insurer shall pay claims within 30 days"}, SplitSentences(VisibleText(content, "text/html")))

	article := `<html><body><div>Menu entries for the site header</div><div role="main"><p>The Tenant may sublet with consent</p></div></body></html>`
	text := VisibleText(article, "text/html")
	assert.Contains(t, text, "The Tenant may sublet with consent")
	assert.NotContains(t, text, "Menu entries")
}

func TestVisibleText_PlainTextUnchanged(t *testing.T) {
	assert.Equal(t, "a < b and c > d", VisibleText("a < b and c > d", "text/plain"))
}

func TestHeuristicExtractor_Universal(t *testing.T) {
	e, err := NewHeuristicExtractor(model.UniversalTaxonomy(), nil)
	require.NoError(t, err)
	assert.Equal(t, "heuristic", e.Name())

	clauses, err := e.Extract(context.Background(), model.Document{Name: "lease.txt", Text: leaseText})
	require.NoError(t, err)

	assert.Equal(t, model.ClauseSet{
		model.CategoryObligations:      {"The Tenant shall pay rent on the first day of each month."},
		model.CategoryRights:           {"The Landlord may enter the premises with 24 hours notice."},
		model.CategoryRisksLiabilities: {"The Tenant shall indemnify the Landlord against all claims."},
		model.CategoryTermTermination:  {"This lease terminates on December 31, 2026."},
		model.CategoryLevers:           {"Rent is discounted by 5% for annual prepayment."},
	}, clauses)
}

func TestHeuristicExtractor_BenefitLiability(t *testing.T) {
	e, err := NewHeuristicExtractor(model.BenefitLiabilityTaxonomy(), nil)
	require.NoError(t, err)

	clauses, err := e.Extract(context.Background(), model.Document{Name: "lease.txt", Text: leaseText})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"The Tenant shall pay rent on the first day of each month.",
		"The Tenant shall indemnify the Landlord against all claims.",
	}, clauses[model.CategoryLiabilities])
	assert.Equal(t, []string{"The Landlord may enter the premises with 24 hours notice."}, clauses[model.CategoryBenefits])
	assert.Equal(t, []string{"Rent is discounted by 5% for annual prepayment."}, clauses[model.CategoryLevers])
	assert.NotContains(t, clauses, model.CategoryTermTermination)
}

func TestHeuristicExtractor_CanceledContext(t *testing.T) {
	e, err := NewHeuristicExtractor(model.UniversalTaxonomy(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = e.Extract(ctx, model.Document{Text: leaseText})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewHeuristicExtractor_InvalidTaxonomy(t *testing.T) {
	_, err := NewHeuristicExtractor(model.Taxonomy{}, nil)
	assert.Error(t, err)

	_, err = NewHeuristicExtractor(model.Taxonomy{
		Name:       "custom",
		Categories: []model.Category{{Key: "Warranties", Title: "Warranties"}},
	}, nil)
	assert.Error(t, err)
}

// scriptedProvider returns one scripted answer per call
type scriptedProvider struct {
	answers []scriptedAnswer
	prompts []string
}

type scriptedAnswer struct {
	text string
	err  error
}

func (p *scriptedProvider) Name() string                     { return "mock" }
func (p *scriptedProvider) IsAvailable(context.Context) bool { return true }

func (p *scriptedProvider) Generate(_ context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	p.prompts = append(p.prompts, req.Prompt)
	if len(p.answers) == 0 {
		return nil, errors.New("no scripted answer left")
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	if a.err != nil {
		return nil, a.err
	}
	return &llm.GenerateResponse{Text: a.text, TokensUsed: 10}, nil
}

func newTestLLMExtractor(t *testing.T, p llm.Provider) *LLMExtractor {
	t.Helper()
	e, err := NewLLMExtractor(p, model.UniversalTaxonomy(), 3, nil)
	require.NoError(t, err)
	e.backoff = func(int) time.Duration { return 0 }
	return e
}

func TestLLMExtractor_Success(t *testing.T) {
	p := &scriptedProvider{answers: []scriptedAnswer{{text: "```json\n" + `{
		"Obligations": ["Pay rent monthly", "  "],
		"Rights": [],
		"Warranties": ["Goods are fit for purpose"]
	}` + "\n```"}}}
	e := newTestLLMExtractor(t, p)
	assert.Equal(t, "llm:mock", e.Name())

	clauses, err := e.Extract(context.Background(), model.Document{Name: "a.txt", Text: "lease text"})
	require.NoError(t, err)

	assert.Equal(t, model.ClauseSet{model.CategoryObligations: {"Pay rent monthly"}}, clauses)
	require.Len(t, p.prompts, 1)
	assert.Contains(t, p.prompts[0], "- Risks_Liabilities:")
	assert.Contains(t, p.prompts[0], "lease text")
}

func TestLLMExtractor_RetriesWithFeedback(t *testing.T) {
	p := &scriptedProvider{answers: []scriptedAnswer{
		{text: ""},
		{text: "Sure! Here are the clauses."},
		{text: `{"Obligations": "Pay rent"}`},
		{text: `{"Obligations": ["Pay rent"]}`},
	}}
	e, err := NewLLMExtractor(p, model.UniversalTaxonomy(), 4, nil)
	require.NoError(t, err)

	clauses, err := e.Extract(context.Background(), model.Document{Name: "a.txt", Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Pay rent"}, clauses[model.CategoryObligations])

	require.Len(t, p.prompts, 4)
	assert.NotContains(t, p.prompts[0], "previous response")
	assert.Contains(t, p.prompts[1], "was empty")
	assert.Contains(t, p.prompts[2], "not valid JSON")
	assert.Contains(t, p.prompts[3], "failed validation")
	assert.Contains(t, p.prompts[3], "Obligations must be an array of strings")
}

func TestLLMExtractor_GivesUpAfterMaxAttempts(t *testing.T) {
	p := &scriptedProvider{answers: []scriptedAnswer{
		{text: `{"Obligations": [1]}`},
		{text: `{"Obligations": [1]}`},
		{text: `{"Obligations": [1]}`},
	}}
	e := newTestLLMExtractor(t, p)

	_, err := e.Extract(context.Background(), model.Document{Name: "a.txt", Text: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.ErrorIs(t, err, compare.ErrInvalidInput)
	assert.Len(t, p.prompts, 3)
}

func TestLLMExtractor_TransientErrorsBackOff(t *testing.T) {
	p := &scriptedProvider{answers: []scriptedAnswer{
		{err: &llm.StatusError{Provider: "mock", StatusCode: 429, Message: "slow down"}},
		{err: context.DeadlineExceeded},
		{text: `{"Rights": ["Terminate on notice"]}`},
	}}
	e := newTestLLMExtractor(t, p)

	var delays []int
	e.backoff = func(attempt int) time.Duration {
		delays = append(delays, attempt)
		return 0
	}

	clauses, err := e.Extract(context.Background(), model.Document{Name: "a.txt", Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Terminate on notice"}, clauses[model.CategoryRights])
	assert.Equal(t, []int{1, 2}, delays)
}

func TestLLMExtractor_PermanentErrorFailsFast(t *testing.T) {
	authErr := &llm.StatusError{Provider: "mock", StatusCode: 401, Message: "bad key"}
	p := &scriptedProvider{answers: []scriptedAnswer{{err: authErr}}}
	e := newTestLLMExtractor(t, p)

	_, err := e.Extract(context.Background(), model.Document{Name: "a.txt", Text: "x"})
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.ErrorIs(t, err, authErr)
	assert.Len(t, p.prompts, 1)
}

func TestLLMExtractor_Instructions(t *testing.T) {
	p := &scriptedProvider{answers: []scriptedAnswer{{text: `{"Obligations": ["Pay rent"]}`}}}
	e, err := NewLLMExtractor(p, model.UniversalTaxonomy(), 1, nil, WithInstructions("  Focus on liability clauses  "))
	require.NoError(t, err)

	_, err = e.Extract(context.Background(), model.Document{Name: "a.txt", Text: "lease text"})
	require.NoError(t, err)

	require.Len(t, p.prompts, 1)
	assert.Contains(t, p.prompts[0], "ADDITIONAL INSTRUCTIONS:\nFocus on liability clauses\n")
	assert.Less(t, strings.Index(p.prompts[0], "Focus on liability"), strings.Index(p.prompts[0], "lease text"))

	plain := newTestLLMExtractor(t, &scriptedProvider{})
	assert.NotContains(t, plain.buildPrompt("x"), "ADDITIONAL INSTRUCTIONS")
}

func TestLLMExtractor_Fingerprint(t *testing.T) {
	p := &scriptedProvider{}
	newExtractor := func(opts ...LLMOption) *LLMExtractor {
		e, err := NewLLMExtractor(p, model.UniversalTaxonomy(), 3, nil, opts...)
		require.NoError(t, err)
		return e
	}

	assert.Equal(t, "llm:mock:default", newExtractor().Fingerprint())
	assert.Equal(t, "llm:mock:model-one", newExtractor(WithModel("model-one")).Fingerprint())
	assert.NotEqual(t,
		newExtractor(WithModel("model-one")).Fingerprint(),
		newExtractor(WithModel("model-one"), WithInstructions("Focus on liability clauses")).Fingerprint())

	// Name stays stable for reports
	assert.Equal(t, "llm:mock", newExtractor(WithModel("model-one")).Name())
}

func TestNewLLMExtractor_RequiresProvider(t *testing.T) {
	_, err := NewLLMExtractor(nil, model.UniversalTaxonomy(), 3, nil)
	assert.Error(t, err)
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct{ in, want string }{
		{`{"a": []}`, `{"a": []}`},
		{"```json\n{\"a\": []}\n```", `{"a": []}`},
		{"```\n{\"a\": []}\n```", `{"a": []}`},
		{"  \n```json\n{}\n```  \n", `{}`},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripCodeFences(tt.in), "input %q", tt.in)
	}
}

// countingExtractor counts calls to the wrapped extractor
type countingExtractor struct {
	calls int
	err   error
}

func (c *countingExtractor) Name() string { return "counting" }

func (c *countingExtractor) Extract(_ context.Context, doc model.Document) (model.ClauseSet, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return model.ClauseSet{model.CategoryObligations: {strings.ToUpper(doc.Text)}}, nil
}

func TestCachedExtractor(t *testing.T) {
	inner := &countingExtractor{}
	mem := cache.NewMemoryCache(time.Minute, time.Minute)
	c := NewCachedExtractor(inner, mem, "universal", 0, nil)
	assert.Equal(t, "counting", c.Name())

	doc := model.Document{Name: "a.txt", Text: "pay rent"}

	first, cached, err := c.ExtractCached(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, cached)

	second, cached, err := c.ExtractCached(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)

	// Another taxonomy is another key
	other := NewCachedExtractor(inner, mem, "benefit-liability", 0, nil)
	_, cached, err = other.ExtractCached(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedExtractor_ErrorsAreNotCached(t *testing.T) {
	inner := &countingExtractor{err: ErrExtractionFailed}
	c := NewCachedExtractor(inner, cache.NewMemoryCache(time.Minute, time.Minute), "universal", 0, nil)
	doc := model.Document{Name: "a.txt", Text: "pay rent"}

	_, err := c.Extract(context.Background(), doc)
	assert.ErrorIs(t, err, ErrExtractionFailed)
	_, err = c.Extract(context.Background(), doc)
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedExtractor_ModelChangeMisses(t *testing.T) {
	mem := cache.NewMemoryCache(time.Minute, time.Minute)
	doc := model.Document{Name: "a.txt", Text: "lease text", ContentType: "text/plain"}

	extractWith := func(modelName, answer string) (model.ClauseSet, bool, *scriptedProvider) {
		p := &scriptedProvider{answers: []scriptedAnswer{{text: answer}}}
		e, err := NewLLMExtractor(p, model.UniversalTaxonomy(), 1, nil, WithModel(modelName))
		require.NoError(t, err)
		clauses, cached, err := NewCachedExtractor(e, mem, "universal", 0, nil).ExtractCached(context.Background(), doc)
		require.NoError(t, err)
		return clauses, cached, p
	}

	first, cached, _ := extractWith("model-one", `{"Obligations": ["Pay rent monthly"]}`)
	assert.False(t, cached)

	again, cached, p := extractWith("model-one", `{"Obligations": ["unused"]}`)
	assert.True(t, cached)
	assert.Equal(t, first, again)
	assert.Empty(t, p.prompts)

	second, cached, p := extractWith("model-two", `{"Rights": ["Sublet with consent"]}`)
	assert.False(t, cached)
	assert.Len(t, p.prompts, 1)
	assert.Equal(t, model.ClauseSet{model.CategoryRights: {"Sublet with consent"}}, second)
}

func TestCachedExtractor_ContentTypeIsPartOfKey(t *testing.T) {
	inner := &countingExtractor{}
	c := NewCachedExtractor(inner, cache.NewMemoryCache(time.Minute, time.Minute), "universal", 0, nil)

	text := "<p>The Tenant shall pay rent</p>"
	_, cached, err := c.ExtractCached(context.Background(), model.Document{Name: "a.txt", Text: text, ContentType: "text/plain"})
	require.NoError(t, err)
	assert.False(t, cached)

	_, cached, err = c.ExtractCached(context.Background(), model.Document{Name: "a.html", Text: text, ContentType: "text/html"})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, inner.calls)
}
