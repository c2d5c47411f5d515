package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// SlideDoc documents the flat slide record the model is asked to produce.
// Only its schema is used; parsed slides are plain string maps.
type SlideDoc struct {
	Type     string `json:"type" jsonschema:"enum=TitleSlide,enum=ContentSlide,enum=QuizSlide" jsonschema_description:"Slide layout."`
	ID       string `json:"id,omitempty" jsonschema_description:"Optional stable identifier."`
	Title    string `json:"title,omitempty" jsonschema_description:"Heading shown on the slide."`
	Subtitle string `json:"subtitle,omitempty" jsonschema_description:"Secondary heading for TitleSlide."`
	Content  string `json:"content,omitempty" jsonschema_description:"Body text for ContentSlide. Use plain sentences, no markup."`
	Subtext  string `json:"subtext,omitempty" jsonschema_description:"Footnote or caption."`
	Question string `json:"question,omitempty" jsonschema_description:"Question asked on a QuizSlide."`
	Answer   string `json:"answer,omitempty" jsonschema_description:"Correct answer for a QuizSlide."`
}

// Schema returns the JSON schema of one slide object.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	s := r.Reflect(&SlideDoc{})
	s.Version = ""
	s.Title = "Slide"
	return s
}

const Instructions = `You are writing a slide deck. Respond with a JSON array of slide objects and nothing else.

Each element must be a flat JSON object matching this schema:

%s

Rules:
- The first slide is a "TitleSlide" with "title" and "subtitle"
- Use "ContentSlide" for explanations: one idea per slide, "title" plus "content"
- Use "QuizSlide" sparingly to check understanding: "question" plus "answer"
- Every value is a JSON string. Do not nest objects or arrays
- Do not use curly braces inside any string value
- Keep "content" under 60 words
- Do not wrap the array in markdown code fences`

// Params describes one deck.
type Params struct {
	Topic        string
	SlideCount   int
	Instructions string

	MaterialTitle string
	Material      string
}

// Build returns the system prompt and user prompt for a deck.
func Build(p Params) (system, user string, err error) {
	schema, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal slide schema: %w", err)
	}
	system = fmt.Sprintf(Instructions, schema)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n", p.Topic)
	if p.SlideCount > 0 {
		fmt.Fprintf(&sb, "Number of slides: %d\n", p.SlideCount)
	}
	if s := strings.TrimSpace(p.Instructions); s != "" {
		sb.WriteString("Additional instructions: ")
		sb.WriteString(s)
		sb.WriteString("\n")
	}
	if p.Material != "" {
		sb.WriteString("\nBase the slides on the following reference material")
		if p.MaterialTitle != "" {
			fmt.Fprintf(&sb, " (%q)", p.MaterialTitle)
		}
		sb.WriteString(":\n---\n")
		sb.WriteString(p.Material)
		sb.WriteString("\n---\n")
	}
	return system, sb.String(), nil
}
