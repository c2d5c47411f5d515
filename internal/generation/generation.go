package generation

import (
	"context"
	"sync"
	"time"

	"github.com/dgallion1/slidegen/internal/slidestream"
)

// Status represents the state of a generation.
type Status string

const (
	StatusStreaming Status = "streaming"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Generation tracks one slide generation request. It counts stream events
// as a slidestream.Observer but never holds scan state.
type Generation struct {
	mu sync.Mutex

	ID     string `json:"generation_id"`
	Topic  string `json:"topic"`
	Source string `json:"source"`

	Status Status `json:"status"`

	SlidesCreated    int    `json:"slides_created"`
	MalformedObjects int    `json:"malformed_objects"`
	CharacterEvents  int    `json:"character_events"`
	Error            string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	cancel   context.CancelFunc
	finished bool
}

func (g *Generation) CharacterEmitted(slidestream.FieldUpdate) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CharacterEvents++
	g.UpdatedAt = time.Now()
}

func (g *Generation) SlideCreated(int, slidestream.Slide) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.SlidesCreated++
	g.UpdatedAt = time.Now()
}

func (g *Generation) ObjectDiscarded(int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.MalformedObjects++
	g.UpdatedAt = time.Now()
}

func (g *Generation) StreamFinished(outcome slidestream.Outcome, _ int, _ time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch outcome {
	case slidestream.OutcomeCompleted:
		g.Status = StatusCompleted
	case slidestream.OutcomeCancelled:
		g.Status = StatusCancelled
	default:
		g.Status = StatusFailed
	}
	g.UpdatedAt = time.Now()
}

// Snapshot is a read-only, JSON-safe copy of generation state.
type Snapshot struct {
	ID               string    `json:"generation_id"`
	Topic            string    `json:"topic"`
	Source           string    `json:"source"`
	Status           Status    `json:"status"`
	SlidesCreated    int       `json:"slides_created"`
	MalformedObjects int       `json:"malformed_objects"`
	CharacterEvents  int       `json:"character_events"`
	Error            string    `json:"error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (g *Generation) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{
		ID:               g.ID,
		Topic:            g.Topic,
		Source:           g.Source,
		Status:           g.Status,
		SlidesCreated:    g.SlidesCreated,
		MalformedObjects: g.MalformedObjects,
		CharacterEvents:  g.CharacterEvents,
		Error:            g.Error,
		CreatedAt:        g.CreatedAt,
		UpdatedAt:        g.UpdatedAt,
	}
}

// finish marks the generation done. It reports false if it already was.
func (g *Generation) finish(err error) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.finished {
		return false
	}
	g.finished = true
	if err != nil {
		g.Error = err.Error()
		if g.Status == StatusStreaming {
			g.Status = StatusFailed
		}
	}
	if g.Status == StatusStreaming {
		g.Status = StatusCompleted
	}
	g.UpdatedAt = time.Now()
	g.cancel()
	return true
}

func (g *Generation) done() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.finished
}

func (g *Generation) lastUpdate() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.UpdatedAt
}
