package material

import (
	"bufio"
	"io"
	"strings"
)

// textReader splits plain text into paragraphs on blank lines.
type textReader struct{}

func (textReader) Read(r io.Reader, filename string) (*Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	doc := &Document{Title: baseTitle(filename)}
	var current strings.Builder
	para := func() {
		if current.Len() > 0 {
			doc.Sections = append(doc.Sections, &Section{Text: current.String()})
			current.Reset()
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			para()
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	para()
	return doc, nil
}
