package graph

import (
	"cmp"
	"fmt"
)

// Position is a 0-based location in a source file. Column is a byte offset
// within the line.
type Position struct {
	Path   string `json:"path"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.Path, p.Line, p.Column)
}

// GoString renders the position in constructor form.
func (p Position) GoString() string {
	return fmt.Sprintf("Position(path=%q, line=%d, column=%d)", p.Path, p.Line, p.Column)
}

// Compare orders positions by path, then line, then column.
func (p Position) Compare(o Position) int {
	if c := cmp.Compare(p.Path, o.Path); c != 0 {
		return c
	}
	if c := cmp.Compare(p.Line, o.Line); c != 0 {
		return c
	}
	return cmp.Compare(p.Column, o.Column)
}

// Point is a line/column pair inside a single file.
type Point struct {
	Line   int `json:"line"`
	Column int `json:"col"`
}

func (p Point) before(o Point) bool {
	return p.Line < o.Line || (p.Line == o.Line && p.Column < o.Column)
}

// Span is the source extent of a Definition or Reference node.
type Span struct {
	Start     Point  `json:"start"`
	End       Point  `json:"end"`
	StartByte uint32 `json:"start_byte"`
	EndByte   uint32 `json:"end_byte"`
}

// Contains reports whether the point lies in [Start, End). An empty span
// contains only its start.
func (s Span) Contains(p Point) bool {
	if p.before(s.Start) {
		return false
	}
	if s.Start == s.End {
		return p == s.Start
	}
	return p.before(s.End)
}

// Position returns the start of the span as a Position in path.
func (s Span) Position(path string) Position {
	return Position{Path: path, Line: s.Start.Line, Column: s.Start.Column}
}
