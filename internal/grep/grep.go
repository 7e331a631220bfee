// Package grep matches regular expressions against names and line-oriented
// byte streams.
package grep

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"

	fsutil "github.com/kk-code-lab/rfind/internal/fs"
)

// ErrInvalidPattern is returned by Compile when the pattern does not parse.
var ErrInvalidPattern = errors.New("invalid pattern")

const readerBufferSize = 64 << 10

// MatchSpan is a half-open [Start, End) byte range of a match inside a line
// or a name.
type MatchSpan struct {
	Start int
	End   int
}

// LineMatch is one matching line. Number starts at 1.
type LineMatch struct {
	Number int
	Text   string
	Spans  []MatchSpan
}

// Matcher is a compiled pattern. It is safe for concurrent use.
type Matcher struct {
	pattern string
	re      *regexp.Regexp
}

// Compile builds a matcher. A literal pattern is escaped before compiling.
func Compile(pattern string, caseSensitive, literal bool) (*Matcher, error) {
	expr := pattern
	if literal {
		expr = regexp.QuoteMeta(expr)
	}
	if !caseSensitive {
		expr = "(?i)" + expr
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, pattern, err)
	}
	return &Matcher{pattern: pattern, re: re}, nil
}

// String returns the pattern the matcher was compiled from.
func (m *Matcher) String() string {
	return m.pattern
}

// MatchString reports whether s contains a match.
func (m *Matcher) MatchString(s string) bool {
	return m.re.MatchString(s)
}

// Spans returns every match in s.
func (m *Matcher) Spans(s string) []MatchSpan {
	return toSpans(m.re.FindAllStringIndex(s, -1))
}

// Search scans r line by line and calls fn for every matching line until fn
// returns false. Content starting with a Unicode BOM is transcoded to UTF-8
// first. A NUL byte marks the content as binary and ends the scan quietly,
// keeping matches reported before it.
func (m *Matcher) Search(r io.Reader, fn func(LineMatch) bool) error {
	br := bufio.NewReaderSize(fsutil.NewTextReader(r), readerBufferSize)

	lineNo := 0
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
			text := trimLineEnding(line)
			if bytes.IndexByte(text, 0) >= 0 {
				return nil
			}
			if idx := m.re.FindAllIndex(text, -1); len(idx) > 0 {
				if !fn(LineMatch{Number: lineNo, Text: string(text), Spans: toSpans(idx)}) {
					return nil
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read line %d: %w", lineNo+1, err)
		}
	}
}

func trimLineEnding(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	return bytes.TrimSuffix(line, []byte{'\r'})
}

func toSpans(idx [][]int) []MatchSpan {
	if len(idx) == 0 {
		return nil
	}
	spans := make([]MatchSpan, len(idx))
	for i, pair := range idx {
		spans[i] = MatchSpan{Start: pair[0], End: pair[1]}
	}
	return spans
}
