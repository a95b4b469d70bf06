package bodypath

import (
	"strconv"
	"strings"
)

// SegmentKind tells a field access from an array index.
type SegmentKind int

const (
	SegmentField SegmentKind = iota
	SegmentIndex
)

// Segment is one step of a path.
type Segment struct {
	Kind  SegmentKind
	Field string
	Index int
}

func (s Segment) String() string {
	if s.Kind == SegmentIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Field
}

// Path is a parsed path expression.
type Path struct {
	raw      string
	segments []Segment
}

// Parse splits expr into segments. It fails with ReasonBadPath on empty
// segments, unterminated brackets and non-numeric or negative indexes.
func Parse(expr string) (Path, error) {
	p := Path{raw: expr}
	s := strings.TrimSpace(expr)
	switch {
	case s == "" || s == "$":
		return p, nil
	case strings.HasPrefix(s, "$."):
		s = s[2:]
	case strings.HasPrefix(s, "$["):
		s = s[1:]
	}

	bad := func(detail string) (Path, error) {
		return Path{}, &ExtractionError{Path: expr, Reason: ReasonBadPath, Detail: detail}
	}

	i := 0
	expectField := true
	for i < len(s) {
		switch s[i] {
		case '[':
			if expectField && len(p.segments) > 0 {
				return bad("'[' after '.'")
			}
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return bad("unterminated '['")
			}
			inner := s[i+1 : i+end]
			n, err := strconv.Atoi(inner)
			if err != nil || n < 0 || strings.HasPrefix(inner, "+") {
				return bad("invalid index " + strconv.Quote(inner))
			}
			p.segments = append(p.segments, Segment{Kind: SegmentIndex, Index: n})
			i += end + 1
			expectField = false
		case '.':
			if expectField {
				return bad("empty field name")
			}
			i++
			expectField = true
			if i == len(s) {
				return bad("trailing '.'")
			}
		case ']':
			return bad("unexpected ']'")
		default:
			if !expectField {
				return bad("missing '.' before field name")
			}
			j := i
			for j < len(s) && s[j] != '.' && s[j] != '[' && s[j] != ']' {
				j++
			}
			p.segments = append(p.segments, Segment{Kind: SegmentField, Field: s[i:j]})
			i = j
			expectField = false
		}
	}
	return p, nil
}

// MustParse is like Parse but panics on a malformed expression.
func MustParse(expr string) Path {
	p, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the expression the path was parsed from.
func (p Path) String() string {
	return p.raw
}

// Segments returns a copy of the parsed segments.
func (p Path) Segments() []Segment {
	return append([]Segment(nil), p.segments...)
}

// IsRoot reports whether the path addresses the whole document.
func (p Path) IsRoot() bool {
	return len(p.segments) == 0
}

func formatSegments(segs []Segment) string {
	var b strings.Builder
	b.WriteString("$")
	for _, s := range segs {
		if s.Kind == SegmentField {
			b.WriteByte('.')
		}
		b.WriteString(s.String())
	}
	return b.String()
}
