// Package material turns an uploaded reference document into prompt text.
package material

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Document is a parsed reference document.
type Document struct {
	Title    string
	Sections []*Section
}

// Section is a headed part of a document. Title is empty for untitled text.
type Section struct {
	Title    string
	Text     string
	Page     int
	Children []*Section
}

// Reader converts raw document bytes into a Document.
type Reader interface {
	Read(r io.Reader, filename string) (*Document, error)
}

var supported = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// IsSupported reports whether filename has an extension ForFile accepts.
func IsSupported(filename string) bool {
	return supported[strings.ToLower(filepath.Ext(filename))]
}

// ForFile returns the reader for a filename's extension.
func ForFile(filename string) (Reader, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return textReader{}, nil
	case ".md", ".markdown":
		return markdownReader{}, nil
	case ".html", ".htm":
		return htmlReader{}, nil
	case ".pdf":
		return pdfReader{}, nil
	case ".docx":
		return docxReader{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %q", ext)
	}
}

// Material is the flattened, budget-clipped text of a document.
type Material struct {
	Title     string
	Text      string
	Tokens    int
	Truncated bool
}

// Load parses r according to filename and flattens it to at most maxTokens
// estimated tokens. maxTokens <= 0 means no limit.
func Load(r io.Reader, filename string, maxTokens int) (Material, error) {
	reader, err := ForFile(filename)
	if err != nil {
		return Material{}, err
	}
	doc, err := reader.Read(r, filename)
	if err != nil {
		return Material{}, fmt.Errorf("read %s: %w", filename, err)
	}
	text := Flatten(doc)
	m := Material{Title: doc.Title}
	m.Text, m.Truncated = Clip(text, maxTokens)
	m.Tokens = EstimateTokens(m.Text)
	return m, nil
}

func baseTitle(filename string) string {
	name := filepath.Base(filename)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
