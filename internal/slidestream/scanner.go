package slidestream

import (
	"log/slog"
	"strings"
	"unicode/utf8"
)

// Phase is the per-stream lifecycle position.
type Phase string

const (
	PhaseNotStarted    Phase = "not_started"
	PhaseOutsideObject Phase = "outside_object"
	PhaseInsideObject  Phase = "inside_object"
	PhaseTerminated    Phase = "terminated"
)

// ScanState is the mutable state of one stream. It is owned by a single
// goroutine and discarded when the stream terminates.
type ScanState struct {
	InsideArray bool
	BraceDepth  int
	SlideIndex  int
	Emitted     []Slide

	object     strings.Builder
	pending    []byte
	terminated bool
}

// CurrentObject returns the raw text of the object being scanned, or ""
// between objects.
func (s *ScanState) CurrentObject() string { return s.object.String() }

// Phase reports where the stream is in its lifecycle.
func (s *ScanState) Phase() Phase {
	switch {
	case s.terminated:
		return PhaseTerminated
	case !s.InsideArray:
		return PhaseNotStarted
	case s.BraceDepth > 0:
		return PhaseInsideObject
	default:
		return PhaseOutsideObject
	}
}

// Scanner is the single-pass, resumable parser. Feed it deltas in order;
// it reports character and slide_created events through the emit callback
// in the order they occur.
type Scanner struct {
	state     ScanState
	fields    *fieldTracker
	finalizer *Finalizer
	observer  Observer
	log       *slog.Logger
}

// NewScanner returns a scanner positioned before the array opens.
func NewScanner(opts Options) *Scanner {
	opts = opts.withDefaults()
	return &Scanner{
		fields: newFieldTracker(opts.Fields),
		finalizer: &Finalizer{
			FallbackType: opts.FallbackType,
			Now:          opts.Now,
		},
		observer: opts.Observer,
		log:      opts.Logger,
	}
}

// State exposes the scan state for inspection. Callers must not mutate it.
func (s *Scanner) State() *ScanState { return &s.state }

// Feed scans one delta. An error from emit stops scanning and is returned;
// the scanner must not be fed again afterwards.
func (s *Scanner) Feed(delta string, emit func(Event) error) error {
	st := &s.state
	text := delta
	if len(st.pending) > 0 {
		text = string(st.pending) + delta
		st.pending = st.pending[:0]
	}

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == utf8.RuneError && !utf8.FullRuneInString(text[i:]) {
			// Incomplete sequence at the end of the delta.
			st.pending = append(st.pending, text[i:]...)
			break
		}
		i += size
		if err := s.step(r, emit); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) step(r rune, emit func(Event) error) error {
	st := &s.state
	if !st.InsideArray {
		if r == '[' {
			st.InsideArray = true
		}
		return nil
	}

	switch {
	case r == '{':
		st.BraceDepth++
		if st.BraceDepth == 1 {
			st.object.Reset()
			s.fields.reset()
		}
		st.object.WriteRune(r)
	case r == '}':
		if st.BraceDepth == 0 {
			return nil
		}
		st.object.WriteRune(r)
		st.BraceDepth--
		if st.BraceDepth == 0 {
			err := s.finalize(st.object.String(), emit)
			st.object.Reset()
			s.fields.reset()
			st.SlideIndex++
			return err
		}
	case st.BraceDepth > 0:
		st.object.WriteRune(r)
	default:
		return nil
	}

	field, value, ok := s.fields.observe(r, st.object.String())
	if !ok {
		return nil
	}
	return emit(Event{
		Kind:   EventCharacter,
		Update: FieldUpdate{SlideIndex: st.SlideIndex, Field: field, Content: value},
	})
}

func (s *Scanner) finalize(raw string, emit func(Event) error) error {
	st := &s.state
	slide, err := s.finalizer.Finalize(raw, st.SlideIndex)
	if err != nil {
		s.log.Warn("discarding malformed slide",
			"slide_index", st.SlideIndex,
			"fragment", truncate(raw, 120),
			"error", err,
		)
		s.observer.ObjectDiscarded(st.SlideIndex, err)
		return nil
	}
	st.Emitted = append(st.Emitted, slide)
	return emit(Event{Kind: EventSlideCreated, Slide: slide.clone(), SlideIndex: st.SlideIndex})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
