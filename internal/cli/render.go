package cli

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/kk-code-lab/rfind/internal/options"
	"github.com/kk-code-lab/rfind/internal/rlog"
	"github.com/kk-code-lab/rfind/internal/search"
	"github.com/kk-code-lab/rfind/internal/textutil"
)

var tabSpaces = strings.Repeat(" ", textutil.DefaultTabWidth)

// printer writes results to out and status to errOut. With streaming set,
// interim results are printed as they arrive and the final pass only adds
// what was not streamed yet.
type printer struct {
	out    io.Writer
	errOut io.Writer
	width  int

	streaming bool
	progress  bool

	pathStyle  *color.Color
	matchStyle *color.Color
	lineStyle  *color.Color
	colored    bool

	printed    map[string]struct{}
	errorCount int
	showingBar bool
}

func newPrinter(out, errOut io.Writer, width int, colored bool) *printer {
	p := &printer{
		out:        out,
		errOut:     errOut,
		width:      width,
		colored:    colored,
		pathStyle:  color.New(color.FgBlue, color.Bold),
		matchStyle: color.New(color.FgRed, color.Bold),
		lineStyle:  color.New(color.FgGreen),
		printed:    make(map[string]struct{}),
	}
	for _, c := range []*color.Color{p.pathStyle, p.matchStyle, p.lineStyle} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p *printer) interim(r *search.FileResult) {
	if r == nil || !p.streaming {
		return
	}
	p.result(*r)
}

func (p *printer) scanned(n int64) {
	if !p.progress {
		return
	}
	fmt.Fprintf(p.errOut, "\r\033[Kscanned %d files", n)
	p.showingBar = true
}

func (p *printer) errors(errs []string) {
	p.errorCount += len(errs)
	for _, e := range errs {
		rlog.Debug(e)
	}
}

func (p *printer) clearProgress() {
	if p.showingBar {
		fmt.Fprint(p.errOut, "\r\033[K")
		p.showingBar = false
	}
}

func (p *printer) final(final *search.FinalResults) {
	for _, r := range final.Entries {
		if _, ok := p.printed[r.Path]; ok {
			continue
		}
		p.result(r)
	}
	p.clearProgress()
	fmt.Fprintln(p.errOut, summary(len(final.Entries), final.Elapsed, p.errorCount))
}

func (p *printer) result(r search.FileResult) {
	p.clearProgress()
	p.printed[r.Path] = struct{}{}

	fmt.Fprintln(p.out, p.pathLine(r))
	for _, m := range r.Matches {
		prefix := fmt.Sprintf("  %d:", m.LineNumber)
		budget := 0
		if p.width > 0 {
			budget = max(p.width-len(prefix)-1, 1)
		}
		fmt.Fprintf(p.out, "%s %s\n", p.lineStyle.Sprint(prefix), highlight(m.Text, m.Ranges, budget, nil, p.matchStyle.Sprint))
	}
}

// pathLine renders the path with the matched part of the name marked.
func (p *printer) pathLine(r search.FileResult) string {
	path := r.Path
	if r.IsDir {
		path += "/"
	}
	spans := r.NameRanges
	offset := strings.LastIndex(r.Path, r.Name)
	if offset < 0 || offset+len(r.Name) != len(r.Path) {
		spans = nil
	}
	shifted := make([]search.MatchSpan, 0, len(spans))
	for _, s := range spans {
		shifted = append(shifted, search.MatchSpan{Start: s.Start + offset, End: s.End + offset})
	}
	return highlight(path, shifted, p.width, p.pathStyle.Sprint, p.matchStyle.Sprint)
}

// highlight makes text printable within width cells and passes the parts
// covered by spans through mark, the rest through plain when it is not nil.
// Spans must be ordered and disjoint; invalid ones are ignored.
func highlight(text string, spans []search.MatchSpan, width int, plain, mark func(...any) string) string {
	if len(spans) == 0 {
		line := textutil.Line(text, width)
		if plain != nil {
			return plain(line)
		}
		return line
	}

	var b strings.Builder
	remaining := width
	pos := 0

	write := func(segment string, marked bool) bool {
		if segment == "" {
			return true
		}
		segment = strings.ReplaceAll(textutil.SanitizeTerminalText(segment), "\t", tabSpaces)
		full := true
		if width > 0 {
			if remaining <= 0 {
				return false
			}
			if textutil.DisplayWidth(segment) > remaining {
				segment = textutil.Truncate(segment, remaining)
				full = false
			}
			remaining -= textutil.DisplayWidth(segment)
		}
		switch {
		case marked:
			b.WriteString(mark(segment))
		case plain != nil:
			b.WriteString(plain(segment))
		default:
			b.WriteString(segment)
		}
		return full
	}

	for _, s := range spans {
		if s.Start < pos || s.End <= s.Start || s.End > len(text) ||
			!utf8.RuneStart(text[s.Start]) || (s.End < len(text) && !utf8.RuneStart(text[s.End])) {
			continue
		}
		if !write(text[pos:s.Start], false) || !write(text[s.Start:s.End], true) {
			return b.String()
		}
		pos = s.End
	}
	write(text[pos:], false)
	return b.String()
}

func summary(count int, elapsed time.Duration, errCount int) string {
	noun := "results"
	if count == 1 {
		noun = "result"
	}
	line := fmt.Sprintf("%d %s in %s", count, noun, elapsed.Round(time.Millisecond))
	if errCount > 0 {
		line += fmt.Sprintf(", %d errors", errCount)
	}
	return line
}

func printHistory(out io.Writer, opts options.Options) {
	fmt.Fprintln(out, "name:")
	for _, h := range opts.NameHistory {
		fmt.Fprintf(out, "  %s\n", textutil.Line(h, 0))
	}
	fmt.Fprintln(out, "content:")
	for _, h := range opts.ContentHistory {
		fmt.Fprintf(out, "  %s\n", textutil.Line(h, 0))
	}
}
