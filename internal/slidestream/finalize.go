package slidestream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// FallbackType is assigned to slides that arrive without a type.
const FallbackType = "TitleSlide"

// Finalizer turns a balanced-brace object fragment into a Slide.
type Finalizer struct {
	FallbackType string
	Now          func() time.Time
}

// Finalize parses raw as a flat JSON object. String values are kept
// verbatim, other scalars as their JSON literal, nested values as compact
// JSON text and nulls are dropped. A missing or empty type or id is
// back-filled; synthesized ids combine the clock and index so they are
// unique within a stream.
func (f *Finalizer) Finalize(raw string, index int) (Slide, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("parse slide %d: %w", index, err)
	}

	slide := make(Slide, len(fields)+2)
	for key, val := range fields {
		s, keep, err := flatValue(val)
		if err != nil {
			return nil, fmt.Errorf("parse slide %d field %q: %w", index, key, err)
		}
		if keep {
			slide[key] = s
		}
	}

	if slide["type"] == "" {
		slide["type"] = f.fallbackType()
	}
	if slide["id"] == "" {
		slide["id"] = fmt.Sprintf("slide-%d-%d", f.now().UnixNano(), index)
	}
	return slide, nil
}

func flatValue(val json.RawMessage) (string, bool, error) {
	val = bytes.TrimSpace(val)
	if len(val) == 0 {
		return "", false, nil
	}
	switch val[0] {
	case '"':
		var s string
		if err := json.Unmarshal(val, &s); err != nil {
			return "", false, err
		}
		return s, true, nil
	case 'n':
		return "", false, nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, val); err != nil {
			return "", false, err
		}
		return buf.String(), true, nil
	default:
		return string(val), true, nil
	}
}

func (f *Finalizer) fallbackType() string {
	if f.FallbackType == "" {
		return FallbackType
	}
	return f.FallbackType
}

func (f *Finalizer) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}
