package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Sentence length bounds in runes. Shorter fragments are headings or
// numbering; longer sentences are split at commas, then at word boundaries.
const (
	minSentenceLen = 20
	maxSentenceLen = 600
)

// VisibleText returns the readable text of a document. HTML is reduced to
// the text nodes of its main content (main, then article or role=main, then
// the whole page) with paragraph breaks after block elements; anything else
// is returned unchanged.
func VisibleText(content, contentType string) string {
	if !isHTML(content, contentType) {
		return content
	}

	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return content
	}
	return extractVisibleText(mainContent(doc))
}

// mainContent narrows a page to its primary content so navigation and
// footers do not turn into clauses
func mainContent(doc *html.Node) *html.Node {
	if n := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "main"
	}); n != nil {
		return n
	}
	if n := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && (n.Data == "article" || attr(n, "role") == "main")
	}); n != nil {
		return n
	}
	return doc
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func isHTML(content, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	head := strings.ToLower(strings.TrimSpace(content))
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html") || strings.Contains(head, "<body")
}

var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "br": true, "tr": true,
	"section": true, "article": true, "blockquote": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// extractVisibleText extracts text nodes from HTML, skipping scripts/styles
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockElements[n.Data] {
			buf.WriteString("\n\n")
		}
	}

	walk(n)
	return buf.String()
}

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)

// SplitSentences splits text into candidate clauses. Paragraph breaks always
// end a sentence; inside a paragraph a terminator must be followed by
// whitespace so that section numbers like 4.2 survive.
func SplitSentences(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var sentences []string
	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.ReplaceAll(para, "\n", " ")
		sentences = appendSentences(sentences, para)
	}
	return sentences
}

func appendSentences(sentences []string, text string) []string {
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' || r == ';' {
			if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\t') {
				sentences = appendSentence(sentences, current.String())
				current.Reset()
			}
		}
	}

	if current.Len() > 0 {
		sentences = appendSentence(sentences, current.String())
	}
	return sentences
}

func appendSentence(sentences []string, s string) []string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxSentenceLen {
		for _, chunk := range splitLong(s) {
			if n := utf8.RuneCountInString(chunk); n >= minSentenceLen && n <= maxSentenceLen {
				sentences = append(sentences, chunk)
			}
		}
		return sentences
	}
	if utf8.RuneCountInString(s) < minSentenceLen {
		return sentences
	}
	return append(sentences, s)
}

// splitLong packs the comma-separated parts of s into chunks of at most
// maxSentenceLen runes. Parts that are too long on their own are packed word
// by word. Joining the chunks with single spaces gives back s.
func splitLong(s string) []string {
	var pieces []string
	for _, part := range strings.SplitAfter(s, ", ") {
		if utf8.RuneCountInString(part) <= maxSentenceLen {
			pieces = append(pieces, part)
			continue
		}
		words := strings.Fields(part)
		for i, w := range words {
			if i < len(words)-1 || strings.HasSuffix(part, " ") {
				w += " "
			}
			pieces = append(pieces, w)
		}
	}

	var chunks []string
	var current strings.Builder
	size := 0
	for _, p := range pieces {
		n := utf8.RuneCountInString(strings.TrimRight(p, " "))
		if size > 0 && size+n > maxSentenceLen {
			chunks = append(chunks, strings.TrimRight(current.String(), " "))
			current.Reset()
			size = 0
		}
		current.WriteString(p)
		size = utf8.RuneCountInString(current.String())
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimRight(current.String(), " "))
	}
	return chunks
}
