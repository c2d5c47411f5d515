package slidestream

import (
	"context"
	"log/slog"
	"time"
)

// Options configures a stream. The zero value is usable: default fields,
// fallback type, no pacing, no observer and a discarding logger.
type Options struct {
	Fields       []string
	FallbackType string
	Pacer        Pacer
	Observer     Observer
	Logger       *slog.Logger
	Now          func() time.Time

	// Buffer is the capacity of the channel between the scanning stage
	// and the emitting stage.
	Buffer int
}

func (o Options) withDefaults() Options {
	if len(o.Fields) == 0 {
		o.Fields = DefaultFields
	}
	if o.FallbackType == "" {
		o.FallbackType = FallbackType
	}
	if o.Pacer == nil {
		o.Pacer = NoPacer{}
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Buffer <= 0 {
		o.Buffer = 64
	}
	return o
}

// Pacer inserts the artificial delay that follows a released event.
type Pacer interface {
	Pace(ctx context.Context, kind EventKind) error
}

// SleepPacer waits CharacterDelay after character events and SlideDelay
// after slide_created events. Other kinds are not delayed.
type SleepPacer struct {
	CharacterDelay time.Duration
	SlideDelay     time.Duration
}

// Pace sleeps for the delay configured for kind or until ctx is done.
func (p SleepPacer) Pace(ctx context.Context, kind EventKind) error {
	var d time.Duration
	switch kind {
	case EventCharacter:
		d = p.CharacterDelay
	case EventSlideCreated:
		d = p.SlideDelay
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NoPacer never delays.
type NoPacer struct{}

func (NoPacer) Pace(context.Context, EventKind) error { return nil }

// Outcome is how a stream terminated.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Observer receives notifications about a stream. Methods may be called
// from different goroutines of the same pipeline.
type Observer interface {
	CharacterEmitted(u FieldUpdate)
	SlideCreated(index int, slide Slide)
	ObjectDiscarded(index int, err error)
	StreamFinished(outcome Outcome, slides int, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) CharacterEmitted(FieldUpdate) {}
func (nopObserver) SlideCreated(int, Slide) {}
func (nopObserver) ObjectDiscarded(int, error) {}
func (nopObserver) StreamFinished(Outcome, int, time.Duration) {}

// Observers fans notifications out to each observer in order.
type Observers []Observer

func (obs Observers) CharacterEmitted(u FieldUpdate) {
	for _, o := range obs {
		o.CharacterEmitted(u)
	}
}

func (obs Observers) SlideCreated(index int, slide Slide) {
	for _, o := range obs {
		o.SlideCreated(index, slide)
	}
}

func (obs Observers) ObjectDiscarded(index int, err error) {
	for _, o := range obs {
		o.ObjectDiscarded(index, err)
	}
}

func (obs Observers) StreamFinished(outcome Outcome, slides int, elapsed time.Duration) {
	for _, o := range obs {
		o.StreamFinished(outcome, slides, elapsed)
	}
}
