package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/cli/go-gh/v2/pkg/markdown"

	"github.com/dgallion1/slidegen/internal/slidestream"
)

func renderSlides(w io.Writer, slides []slidestream.Slide) error {
	r, err := glamour.NewTermRenderer(
		markdown.WithWrap(100),
		glamour.WithAutoStyle(),
	)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	out, err := r.Render(slidesMarkdown(slides))
	if err != nil {
		return fmt.Errorf("render slides: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

// slidesMarkdown lays out each slide as a section separated by rules.
func slidesMarkdown(slides []slidestream.Slide) string {
	if len(slides) == 0 {
		return "_No slides._\n"
	}
	var sb strings.Builder
	for i, s := range slides {
		if i > 0 {
			sb.WriteString("\n---\n\n")
		}
		title := s["title"]
		if title == "" {
			title = fmt.Sprintf("Slide %d", i+1)
		}
		if s.Type() == "TitleSlide" {
			fmt.Fprintf(&sb, "# %s\n\n", title)
		} else {
			fmt.Fprintf(&sb, "## %s\n\n", title)
		}
		if v := s["subtitle"]; v != "" {
			fmt.Fprintf(&sb, "_%s_\n\n", v)
		}
		if v := s["content"]; v != "" {
			fmt.Fprintf(&sb, "%s\n\n", v)
		}
		if v := s["question"]; v != "" {
			fmt.Fprintf(&sb, "**Q:** %s\n\n", v)
		}
		if v := s["answer"]; v != "" {
			fmt.Fprintf(&sb, "**A:** %s\n\n", v)
		}
		if v := s["subtext"]; v != "" {
			fmt.Fprintf(&sb, "> %s\n\n", v)
		}
	}
	return sb.String()
}
