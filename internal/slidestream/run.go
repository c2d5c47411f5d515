package slidestream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"
)

// Sink receives outbound events in order.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Send(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Result summarizes a finished stream.
type Result struct {
	Outcome Outcome
	Slides  []Slide
}

// Run drives one stream from src to sink.
//
// A scanning stage pulls deltas and produces events; an emitting stage
// delivers them to sink in the same order, pacing after each character and
// slide_created event. Exactly one terminal event ends the stream: complete
// on end of stream, error on upstream failure or cancellation. When sink
// itself fails no further events are attempted. If src implements
// io.Closer it is closed before Run returns.
func Run(ctx context.Context, src Source, sink Sink, opts Options) (Result, error) {
	opts = opts.withDefaults()
	started := time.Now()
	if c, ok := src.(io.Closer); ok {
		defer c.Close()
	}

	scanner := NewScanner(opts)
	events := make(chan Event, opts.Buffer)
	var (
		upstreamErr error
		delivered   Event
		sinkErr     error
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(events)
		send := func(ev Event) error {
			select {
			case events <- ev:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		}

		if err := send(Event{Kind: EventStart}); err != nil {
			return err
		}
		for {
			delta, err := src.Next(gctx)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				upstreamErr = err
				return send(Event{Kind: EventError, Message: err.Error()})
			}
			if err := scanner.Feed(delta, send); err != nil {
				return err
			}
		}
		slides := make([]Slide, len(scanner.state.Emitted))
		copy(slides, scanner.state.Emitted)
		return send(Event{Kind: EventComplete, Slides: slides})
	})

	g.Go(func() error {
		for ev := range events {
			if err := sink.Send(gctx, ev); err != nil {
				sinkErr = fmt.Errorf("deliver %s event: %w", ev.Kind, err)
				return sinkErr
			}
			delivered = ev
			switch ev.Kind {
			case EventCharacter:
				opts.Observer.CharacterEmitted(ev.Update)
			case EventSlideCreated:
				opts.Observer.SlideCreated(ev.SlideIndex, ev.Slide)
			}
			if ev.Terminal() {
				continue
			}
			if err := opts.Pacer.Pace(gctx, ev.Kind); err != nil {
				return err
			}
		}
		return nil
	})

	waitErr := g.Wait()
	scanner.state.terminated = true

	res := Result{Slides: scanner.state.Emitted}
	var err error
	switch {
	case delivered.Kind == EventComplete:
		res.Outcome = OutcomeCompleted
	case delivered.Kind == EventError && upstreamErr != nil:
		res.Outcome = OutcomeFailed
		err = fmt.Errorf("upstream: %w", upstreamErr)
	case ctx.Err() != nil:
		res.Outcome = OutcomeCancelled
		err = ctx.Err()
		if !delivered.Terminal() {
			// Best effort: the consumer may already be gone.
			_ = sink.Send(context.WithoutCancel(ctx), Event{Kind: EventError, Message: "generation cancelled: " + ctx.Err().Error()})
		}
	case sinkErr != nil:
		res.Outcome = OutcomeFailed
		err = sinkErr
	default:
		res.Outcome = OutcomeFailed
		err = waitErr
	}

	opts.Observer.StreamFinished(res.Outcome, len(res.Slides), time.Since(started))
	return res, err
}
