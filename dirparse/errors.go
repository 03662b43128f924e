package dirparse

import "fmt"

// ParseError describes a malformed directory document. Parse errors are
// always recoverable: the caller discards the document and continues.
type ParseError struct {
	Line    int
	Keyword string
	Msg     string
}

func (e *ParseError) Error() string {
	if e.Keyword != "" {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Keyword, e.Msg)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func parseErr(line int, keyword, format string, args ...interface{}) error {
	return &ParseError{Line: line, Keyword: keyword, Msg: fmt.Sprintf(format, args...)}
}
