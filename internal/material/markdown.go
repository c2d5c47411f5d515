package material

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// markdownReader nests sections by ATX/setext heading level using goldmark.
type markdownReader struct{}

func (markdownReader) Read(r io.Reader, filename string) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	root := goldmark.New().Parser().Parse(text.NewReader(src))
	o := newOutline()
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			o.heading(h.Level, inlineText(h, src))
			continue
		}
		o.block(blockText(n, src))
	}
	return &Document{Title: baseTitle(filename), Sections: o.sections()}, nil
}

func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
			continue
		}
		buf.WriteString(inlineText(c, src))
	}
	return strings.TrimSpace(buf.String())
}

// blockText returns the text of a block node: raw lines for code and
// HTML blocks, inline text for paragraphs, recursion for containers.
func blockText(n ast.Node, src []byte) string {
	switch n.Kind() {
	case ast.KindFencedCodeBlock, ast.KindCodeBlock, ast.KindHTMLBlock:
		var buf bytes.Buffer
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		return strings.TrimSpace(buf.String())
	case ast.KindParagraph, ast.KindTextBlock:
		return inlineText(n, src)
	case ast.KindThematicBreak:
		return ""
	}

	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t := blockText(c, src); t != "" {
			parts = append(parts, t)
		}
	}
	if n.Kind() == ast.KindListItem {
		return "- " + strings.Join(parts, "\n")
	}
	sep := "\n\n"
	if n.Kind() == ast.KindList {
		sep = "\n"
	}
	return strings.Join(parts, sep)
}
