package material

import (
	"strings"
	"unicode"
)

// Flatten renders the document as headed plain text. Each titled section
// is introduced by its breadcrumb, e.g. "## Results > Revenue".
func Flatten(doc *Document) string {
	var b strings.Builder
	for _, s := range doc.Sections {
		flattenSection(&b, s, nil)
	}
	return strings.TrimSpace(b.String())
}

func flattenSection(b *strings.Builder, s *Section, breadcrumb []string) {
	crumbs := breadcrumb
	if s.Title != "" {
		crumbs = append(append([]string(nil), breadcrumb...), s.Title)
		b.WriteString("## ")
		b.WriteString(strings.Join(crumbs, " > "))
		b.WriteString("\n\n")
	}
	if s.Text != "" {
		b.WriteString(s.Text)
		b.WriteString("\n\n")
	}
	for _, c := range s.Children {
		flattenSection(b, c, crumbs)
	}
}

// EstimateTokens gives a rough token count from the word count.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	// Roughly 0.75 words per token for English text.
	tokens := int(float64(len(strings.Fields(text))) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// Clip cuts text at a word boundary so that it fits within maxTokens
// estimated tokens. It reports whether anything was cut.
func Clip(text string, maxTokens int) (string, bool) {
	if maxTokens <= 0 || EstimateTokens(text) <= maxTokens {
		return text, false
	}
	maxWords := int(float64(maxTokens) / 1.33)
	words := 0
	inWord := false
	for i, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			if words == maxWords {
				return strings.TrimRightFunc(text[:i], unicode.IsSpace), true
			}
			words++
			inWord = true
		}
	}
	return text, false
}
