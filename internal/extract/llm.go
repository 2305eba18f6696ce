package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/ppiankov/lexicompare/internal/cache"
	"github.com/ppiankov/lexicompare/internal/compare"
	"github.com/ppiankov/lexicompare/internal/llm"
	"github.com/ppiankov/lexicompare/internal/logging"
	"github.com/ppiankov/lexicompare/internal/model"
)

const (
	// DefaultMaxAttempts bounds LLM calls per document
	DefaultMaxAttempts = 3

	// maxInputRunes keeps prompts inside common context windows
	maxInputRunes = 48000
)

const extractionSystemPrompt = "You extract clauses from contracts and classify them. You respond with one JSON object and nothing else."

var categoryHints = map[model.CategoryKey]string{
	model.CategoryObligations:      "duties a party must perform",
	model.CategoryRights:           "things a party is entitled or permitted to do",
	model.CategoryRisksLiabilities: "liabilities, indemnities, penalties, warranties and exposure to loss",
	model.CategoryTermTermination:  "duration, renewal, expiry and termination conditions",
	model.CategoryLevers:           "discounts, credits, waivers and other points open to negotiation",
	model.CategoryBenefits:         "advantages the reader receives",
	model.CategoryLiabilities:      "duties, costs and risks the reader carries",
}

// LLMExtractor asks a language model to extract and classify clauses. The
// answer goes through the same shape validation as clause files.
type LLMExtractor struct {
	provider    llm.Provider
	taxonomy    model.Taxonomy
	maxAttempts int
	model       string
	guidance    string
	logger      *zap.Logger

	backoff func(attempt int) time.Duration
}

// LLMOption configures an LLMExtractor
type LLMOption func(*LLMExtractor)

// WithModel records the model the provider was configured with. It becomes
// part of the cache fingerprint; an empty model means the provider default.
func WithModel(name string) LLMOption {
	return func(e *LLMExtractor) {
		e.model = name
	}
}

// WithInstructions appends user guidance to the extraction prompt
func WithInstructions(text string) LLMOption {
	return func(e *LLMExtractor) {
		e.guidance = strings.TrimSpace(text)
	}
}

// NewLLMExtractor creates an extractor. maxAttempts below 1 uses DefaultMaxAttempts.
func NewLLMExtractor(provider llm.Provider, taxonomy model.Taxonomy, maxAttempts int, logger *zap.Logger, opts ...LLMOption) (*LLMExtractor, error) {
	if provider == nil {
		return nil, errors.New("llm extractor: no LLM provider configured")
	}
	if err := taxonomy.Validate(); err != nil {
		return nil, fmt.Errorf("llm extractor: %w", err)
	}
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}

	e := &LLMExtractor{
		provider:    provider,
		taxonomy:    taxonomy,
		maxAttempts: maxAttempts,
		logger:      logging.OrNop(logger),
		backoff:     backoffDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Name returns "llm:<provider>"
func (e *LLMExtractor) Name() string {
	return "llm:" + e.provider.Name()
}

// Fingerprint identifies everything that shapes the extractor's answer:
// provider, model and prompt guidance.
func (e *LLMExtractor) Fingerprint() string {
	name := e.model
	if name == "" {
		name = "default"
	}
	fp := e.Name() + ":" + name
	if e.guidance != "" {
		fp += ":" + cache.Key("instructions", e.guidance)
	}
	return fp
}

// Extract runs the prompt with up to maxAttempts tries. Empty, non-JSON and
// badly shaped answers are retried with corrective feedback; transient
// transport errors are retried after a backoff.
func (e *LLMExtractor) Extract(ctx context.Context, doc model.Document) (model.ClauseSet, error) {
	text := VisibleText(doc.Text, doc.ContentType)
	if runes := []rune(text); len(runes) > maxInputRunes {
		e.logger.Warn("document truncated for extraction",
			zap.String("document", doc.Name),
			zap.Int("runes", len(runes)),
			zap.Int("limit", maxInputRunes))
		text = string(runes[:maxInputRunes])
	}
	prompt := e.buildPrompt(text)

	feedback := ""
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		last := attempt == e.maxAttempts

		fullPrompt := prompt
		if feedback != "" {
			fullPrompt += "\n\n" + feedback
		}

		resp, err := e.provider.Generate(ctx, llm.GenerateRequest{
			System: extractionSystemPrompt,
			Prompt: fullPrompt,
			JSON:   true,
		})
		if err != nil {
			if llm.IsTransient(err) && !last {
				e.logger.Warn("transient LLM error, retrying",
					zap.String("document", doc.Name),
					zap.Int("attempt", attempt),
					zap.Error(err))
				if werr := sleep(ctx, e.backoff(attempt)); werr != nil {
					return nil, fmt.Errorf("%w: %s: %w", ErrExtractionFailed, doc.Name, werr)
				}
				continue
			}
			return nil, fmt.Errorf("%w: %s: %w", ErrExtractionFailed, doc.Name, err)
		}

		raw := stripCodeFences(resp.Text)
		if raw == "" {
			if !last {
				feedback = "Your previous response was empty. Respond with the JSON object."
				continue
			}
			return nil, fmt.Errorf("%w: %s: empty response", ErrExtractionFailed, doc.Name)
		}

		if !gjson.Valid(raw) {
			if !last {
				feedback = "Your previous response was not valid JSON. Respond with only the JSON object."
				continue
			}
			return nil, fmt.Errorf("%w: %s: response is not valid JSON", ErrExtractionFailed, doc.Name)
		}

		clauses, err := compare.DecodeClauseSet([]byte(raw))
		if err != nil {
			if !last {
				feedback = fmt.Sprintf("Your response failed validation: %s. Fix these issues.", err)
				continue
			}
			return nil, fmt.Errorf("%w: %s: %w", ErrExtractionFailed, doc.Name, err)
		}

		e.logger.Debug("llm extraction finished",
			zap.String("document", doc.Name),
			zap.Int("attempts", attempt),
			zap.Int("tokens", resp.TokensUsed))

		return e.keepTaxonomy(clauses, doc.Name), nil
	}

	return nil, fmt.Errorf("%w: %s: no usable response after %d attempts", ErrExtractionFailed, doc.Name, e.maxAttempts)
}

// keepTaxonomy drops keys outside the taxonomy and blank clauses
func (e *LLMExtractor) keepTaxonomy(clauses model.ClauseSet, docName string) model.ClauseSet {
	kept := make(model.ClauseSet, len(clauses))
	for key, list := range clauses {
		if !e.taxonomy.Has(key) {
			e.logger.Debug("dropping category outside taxonomy",
				zap.String("document", docName),
				zap.String("category", string(key)),
				zap.Int("clauses", len(list)))
			continue
		}
		var texts []string
		for _, c := range list {
			if c = strings.TrimSpace(c); c != "" {
				texts = append(texts, c)
			}
		}
		if len(texts) > 0 {
			kept[key] = texts
		}
	}
	return kept
}

func (e *LLMExtractor) buildPrompt(text string) string {
	var b strings.Builder

	b.WriteString("Extract the clauses of the contract below and put each one into exactly one category.\n\n")
	b.WriteString("Categories:\n")
	for _, c := range e.taxonomy.Categories {
		hint := categoryHints[c.Key]
		if hint == "" {
			hint = c.Title
		}
		fmt.Fprintf(&b, "- %s: %s\n", c.Key, hint)
	}

	b.WriteString(`
RULES:
1. Return one JSON object whose keys are the category keys above.
2. Each value is an array of strings, one clause per string, quoted from the document.
3. Use an empty array for a category with no clauses. Do not add other keys.
`)

	if e.guidance != "" {
		b.WriteString("\nADDITIONAL INSTRUCTIONS:\n")
		b.WriteString(e.guidance)
		b.WriteString("\n")
	}

	b.WriteString(`
CONTRACT:
<<<
`)
	b.WriteString(text)
	b.WriteString("\n>>>")

	return b.String()
}

// stripCodeFences removes a surrounding ```json fence
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	}
	return s
}

func backoffDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 1 * time.Second
	}
	return 2 * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
