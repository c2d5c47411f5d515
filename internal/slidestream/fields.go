package slidestream

import "strings"

// DefaultFields are the field names whose in-progress string values are
// streamed as character events.
var DefaultFields = []string{"title", "subtitle", "subtext", "content", "question"}

// fieldTracker follows the open string value of the most recently opened
// recognized field in the current object.
//
// The object text ends inside such a value exactly when the text before its
// last double quote ends with `"<name>"`, optional whitespace, a colon and
// optional whitespace. The value is everything after that quote. Quotes are
// not escape-aware, so an escaped quote inside a value ends tracking for
// that value.
type fieldTracker struct {
	names []string
	field string
	value strings.Builder
}

func newFieldTracker(names []string) *fieldTracker {
	return &fieldTracker{names: names}
}

func (t *fieldTracker) reset() {
	t.field = ""
	t.value.Reset()
}

// observe is called after r has been appended to obj. It returns the
// field and its value so far when r extended an open recognized value.
func (t *fieldTracker) observe(r rune, obj string) (field, value string, ok bool) {
	if r == '"' {
		t.field = t.fieldBefore(obj[:len(obj)-1])
		t.value.Reset()
		return "", "", false
	}
	if t.field == "" {
		return "", "", false
	}
	t.value.WriteRune(r)
	return t.field, t.value.String(), true
}

// fieldBefore returns the recognized name that prefix ends with, in the
// form `"name"\s*:\s*`, or "".
func (t *fieldTracker) fieldBefore(prefix string) string {
	i := skipSpaceBack(prefix, len(prefix))
	if i == 0 || prefix[i-1] != ':' {
		return ""
	}
	i = skipSpaceBack(prefix, i-1)
	if i == 0 || prefix[i-1] != '"' {
		return ""
	}
	end := i - 1
	for _, name := range t.names {
		start := end - len(name)
		if start < 1 || prefix[start-1] != '"' {
			continue
		}
		if prefix[start:end] == name {
			return name
		}
	}
	return ""
}

func skipSpaceBack(s string, i int) int {
	for i > 0 {
		switch s[i-1] {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			i--
		default:
			return i
		}
	}
	return i
}
