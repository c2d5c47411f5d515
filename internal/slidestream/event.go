package slidestream

import (
	"encoding/json"
	"fmt"
)

// EventKind discriminates outbound events.
type EventKind string

const (
	EventStart        EventKind = "start"
	EventCharacter    EventKind = "character"
	EventSlideCreated EventKind = "slide_created"
	EventComplete     EventKind = "complete"
	EventError        EventKind = "error"
)

// Slide is one finalized flat record. Every slide produced by the
// Finalizer has non-empty "type" and "id" entries.
type Slide map[string]string

// Type returns the slide's type field.
func (s Slide) Type() string { return s["type"] }

// ID returns the slide's id field.
func (s Slide) ID() string { return s["id"] }

func (s Slide) clone() Slide {
	c := make(Slide, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

// FieldUpdate is a snapshot of one recognized field's string value as of
// the latest character scanned. Later updates for the same slide and field
// supersede earlier ones.
type FieldUpdate struct {
	SlideIndex int
	Field      string
	Content    string
}

// Event is one outbound event. Which fields are meaningful depends on Kind:
// Update for character, Slide and SlideIndex for slide_created, Slides for
// complete, Message for error.
type Event struct {
	Kind       EventKind
	Update     FieldUpdate
	Slide      Slide
	SlideIndex int
	Slides     []Slide
	Message    string
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Kind == EventComplete || e.Kind == EventError
}

type startPayload struct {
	Type EventKind `json:"type"`
}

type characterPayload struct {
	Type       EventKind `json:"type"`
	SlideIndex int       `json:"slideIndex"`
	Field      string    `json:"field"`
	Content    string    `json:"content"`
	IsTyping   bool      `json:"isTyping"`
}

type slideCreatedPayload struct {
	Type       EventKind `json:"type"`
	SlideIndex int       `json:"slideIndex"`
	Slide      Slide     `json:"slide"`
}

type completePayload struct {
	Type        EventKind `json:"type"`
	Slides      []Slide   `json:"slides"`
	TotalSlides int       `json:"totalSlides"`
}

type errorPayload struct {
	Type    EventKind `json:"type"`
	Message string    `json:"message"`
}

// MarshalJSON renders the wire payload for the event's kind.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case EventStart:
		return json.Marshal(startPayload{Type: e.Kind})
	case EventCharacter:
		return json.Marshal(characterPayload{
			Type:       e.Kind,
			SlideIndex: e.Update.SlideIndex,
			Field:      e.Update.Field,
			Content:    e.Update.Content,
			IsTyping:   true,
		})
	case EventSlideCreated:
		return json.Marshal(slideCreatedPayload{Type: e.Kind, SlideIndex: e.SlideIndex, Slide: e.Slide})
	case EventComplete:
		slides := e.Slides
		if slides == nil {
			slides = []Slide{}
		}
		return json.Marshal(completePayload{Type: e.Kind, Slides: slides, TotalSlides: len(slides)})
	case EventError:
		return json.Marshal(errorPayload{Type: e.Kind, Message: e.Message})
	default:
		return nil, fmt.Errorf("unknown event kind %q", e.Kind)
	}
}
