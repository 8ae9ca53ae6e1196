package builder

import (
	"fmt"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// ParseError reports that the grammar could not parse the file.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s at %d:%d: %s", e.Path, e.Line, e.Column, e.Message)
}

func newParseError(path string, src []byte, n *sitter.Node) *ParseError {
	p := n.StartPoint()
	msg := "syntax error"
	if n.IsMissing() {
		msg = fmt.Sprintf("missing %q", n.Type())
	} else if text := n.Content(src); text != "" {
		msg = fmt.Sprintf("unexpected %q", truncate(text, 40))
	}
	return &ParseError{Path: path, Line: int(p.Row), Column: int(p.Column), Message: msg}
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// RuleError reports that a language rule set failed against a parsed tree.
type RuleError struct {
	Path string
	Rule string
	Err  error
}

func (e *RuleError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("rule %s failed on %s: %v", e.Rule, e.Path, e.Err)
	}
	return fmt.Sprintf("rules failed on %s: %v", e.Path, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

// firstError returns the first ERROR or missing node in document order.
func firstError(n *sitter.Node) *sitter.Node {
	if n.IsMissing() || n.Type() == "ERROR" {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil {
			if bad := firstError(c); bad != nil {
				return bad
			}
		}
	}
	return nil
}
