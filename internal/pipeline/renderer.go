package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ppiankov/lexicompare/internal/model"
)

// Renderer writes reports as JSON, Markdown and HTML, and prints short
// summaries
type Renderer struct {
	includeFooter bool
	out           io.Writer
	markdown      goldmark.Markdown
}

// NewRenderer creates a renderer that prints summaries to stdout
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{
		includeFooter: includeFooter,
		out:           os.Stdout,
		markdown:      goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// SetOutput redirects summaries
func (r *Renderer) SetOutput(w io.Writer) {
	r.out = w
}

// JSON returns the indented JSON form of report
func (r *Renderer) JSON(report *model.Report) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// RenderJSON writes the report as JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := r.JSON(report)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// Markdown returns the Markdown form of report
func (r *Renderer) Markdown(report *model.Report) string {
	c := report.Comparison
	var b strings.Builder

	fmt.Fprintf(&b, "# Contract Comparison: %s vs %s\n\n", c.DocNames[0], c.DocNames[1])

	fmt.Fprintf(&b, "- **Report ID:** %s\n", c.ID)
	fmt.Fprintf(&b, "- **Generated:** %s\n", c.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- **Taxonomy:** %s\n", c.Taxonomy)
	fmt.Fprintf(&b, "- **Thresholds:** match > %.2f, identical > %.2f\n", c.Thresholds.Match, c.Thresholds.Identical)
	for _, m := range report.Extraction {
		cached := ""
		if m.Cached {
			cached = ", cached"
		}
		fmt.Fprintf(&b, "- **%s:** %d clauses (%s%s)\n", m.Document, m.Clauses, m.Extractor, cached)
	}
	b.WriteString("\n")

	r.writeVerdict(&b, report)

	b.WriteString("## Overview\n\n")
	b.WriteString("| Category | Matched | Only in A | Only in B |\n")
	b.WriteString("|---|---:|---:|---:|\n")
	for _, cat := range c.Categories {
		cmp := cat.Comparison
		fmt.Fprintf(&b, "| %s | %d | %d | %d |\n", cellText(cat.Title), len(cmp.Matched), len(cmp.UniqueToA), len(cmp.UniqueToB))
	}
	b.WriteString("\n")

	for _, cat := range c.Categories {
		writeCategory(&b, cat, c.DocNames)
	}

	if len(c.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range c.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	if r.includeFooter {
		b.WriteString("---\n\n")
		fmt.Fprintf(&b, "_%s_\n\n", report.Verdict.Disclaimer)
		if report.Principles.GreedyMatch {
			b.WriteString("_Clauses are paired greedily in document order; the pairing is not guaranteed to be globally optimal._\n")
		}
	}

	return b.String()
}

func (r *Renderer) writeVerdict(b *strings.Builder, report *model.Report) {
	v := report.Verdict
	b.WriteString("## Verdict\n\n")
	fmt.Fprintf(b, "**%s**\n\n", v.Message)
	fmt.Fprintf(b, "Favorability for %s: **%d/100** (%s)\n\n", report.Comparison.DocNames[0], v.Favorability, v.Band)

	if len(v.Tallies) == 0 {
		return
	}
	b.WriteString("| Category | Points A | Points B | Rule |\n")
	b.WriteString("|---|---:|---:|---|\n")
	for _, t := range v.Tallies {
		fmt.Fprintf(b, "| %s | %d | %d | `%s` |\n", t.Category, t.PointsA, t.PointsB, t.Formula)
	}
	b.WriteString("\n")
}

func writeCategory(b *strings.Builder, cat model.CategoryResult, names [2]string) {
	cmp := cat.Comparison
	title := cat.Title
	if cat.Liability {
		title += " (liability)"
	}
	fmt.Fprintf(b, "## %s\n\n", title)

	if cmp.IsEmpty() {
		b.WriteString("_No clauses in either document._\n\n")
		return
	}

	if len(cmp.Matched) > 0 {
		fmt.Fprintf(b, "### Matched (%d)\n\n", len(cmp.Matched))
		fmt.Fprintf(b, "| %s | %s | Similarity |\n", cellText(names[0]), cellText(names[1]))
		b.WriteString("|---|---|---:|\n")
		for _, p := range cmp.Matched {
			score := fmt.Sprintf("%.2f", p.Similarity)
			if p.Identical {
				score += " (identical)"
			}
			fmt.Fprintf(b, "| %s | %s | %s |\n", cellText(p.TextA), cellText(p.TextB), score)
		}
		b.WriteString("\n")
	}

	writeUnique(b, "Only in "+names[0], cmp.UniqueToA)
	writeUnique(b, "Only in "+names[1], cmp.UniqueToB)
}

func writeUnique(b *strings.Builder, heading string, clauses []model.UniqueClause) {
	if len(clauses) == 0 {
		return
	}
	fmt.Fprintf(b, "### %s (%d)\n\n", heading, len(clauses))
	for _, u := range clauses {
		fmt.Fprintf(b, "- %s\n", strings.Join(strings.Fields(u.Text), " "))
	}
	b.WriteString("\n")
}

// cellText keeps clause text from breaking a Markdown table row
func cellText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

// RenderMarkdown writes the report as Markdown
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, []byte(r.Markdown(report)))
}

// HTML converts the Markdown report into a standalone HTML page
func (r *Renderer) HTML(report *model.Report) ([]byte, error) {
	var content bytes.Buffer
	if err := r.markdown.Convert([]byte(r.Markdown(report)), &content); err != nil {
		return nil, fmt.Errorf("markdown convert: %w", err)
	}

	c := report.Comparison
	title := html.EscapeString(fmt.Sprintf("%s vs %s", c.DocNames[0], c.DocNames[1]))

	var page bytes.Buffer
	page.WriteString("<!doctype html><html><head><meta charset='utf-8'><title>")
	page.WriteString(title)
	page.WriteString("</title><style>")
	page.WriteString("body{font-family:system-ui,sans-serif;max-width:1000px;margin:2rem auto;padding:0 1rem;color:#1c1917;} ")
	page.WriteString("table{width:100%;border-collapse:collapse;font-size:0.9rem;} ")
	page.WriteString("th,td{border:1px solid #a8a29e;padding:0.35rem 0.45rem;text-align:left;vertical-align:top;} ")
	page.WriteString("thead th{background:#f1f5f9;}")
	page.WriteString("</style></head><body>\n")
	page.Write(content.Bytes())
	page.WriteString("</body></html>\n")

	return page.Bytes(), nil
}

// RenderHTML writes the report as HTML
func (r *Renderer) RenderHTML(report *model.Report, path string) error {
	data, err := r.HTML(report)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// RenderLLMMarkdown writes the separate LLM summary document
func (r *Renderer) RenderLLMMarkdown(markdown, path string) error {
	return writeFile(path, []byte(markdown))
}

// RenderSummary prints a short summary of the report
func (r *Renderer) RenderSummary(report *model.Report) {
	c := report.Comparison
	fmt.Fprintf(r.out, "\n%s vs %s\n", c.DocNames[0], c.DocNames[1])
	for _, cat := range c.Categories {
		cmp := cat.Comparison
		fmt.Fprintf(r.out, "  %-22s matched %2d   only A %2d   only B %2d\n",
			cat.Title, len(cmp.Matched), len(cmp.UniqueToA), len(cmp.UniqueToB))
	}
	fmt.Fprintf(r.out, "\n%s\n", report.Verdict.Message)
	fmt.Fprintf(r.out, "Favorability for %s: %d/100 (%s)\n", c.DocNames[0], report.Verdict.Favorability, report.Verdict.Band)
	if r.includeFooter {
		fmt.Fprintf(r.out, "\n%s\n", report.Verdict.Disclaimer)
	}
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
