package material

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// pdfReader yields one section per non-empty page.
type pdfReader struct{}

func (pdfReader) Read(r io.Reader, filename string) (*Document, error) {
	// The pdf library wants an io.ReaderAt and the total size.
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	pr, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	doc := &Document{Title: baseTitle(filename)}
	for i := 1; i <= pr.NumPage(); i++ {
		page := pr.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		doc.Sections = append(doc.Sections, &Section{
			Title: fmt.Sprintf("Page %d", i),
			Text:  text,
			Page:  i,
		})
	}
	if len(doc.Sections) == 0 {
		return nil, fmt.Errorf("pdf %s has no extractable text", filename)
	}
	return doc, nil
}
