package search

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/kk-code-lab/rfind/internal/decode"
	"github.com/kk-code-lab/rfind/internal/grep"
	"github.com/kk-code-lab/rfind/internal/metrics"
	"github.com/kk-code-lab/rfind/internal/rlog"
	"github.com/kk-code-lab/rfind/internal/walk"
)

// contentScanner greps files line by line and, when decoders are set, the
// decoded text of documents they understand.
type contentScanner struct {
	matcher   *grep.Matcher
	decoders  []decode.Decoder
	cancelled *atomic.Bool
	scanned   *atomic.Int64
}

// scan returns the plain-text result for path first, if any, followed by
// one result per decoder with matches. Decoder results use the pseudo-path
// "<path> (<decoder>)".
func (s *contentScanner) scan(path string) ([]FileResult, []string) {
	var (
		results []FileResult
		errs    []string
	)

	// Raw bytes are searched for every file; grep stops at the first NUL,
	// so true binaries cost one buffer.
	matches, err := s.grepFile(path)
	if err != nil {
		errs = append(errs, fmt.Sprintf("%s: %v", path, err))
	} else if len(matches) > 0 {
		r := newFileResult(path, false)
		r.Matches = matches
		results = append(results, r)
	}

	for _, d := range decode.For(s.decoders, path) {
		if s.cancelled.Load() {
			break
		}
		s.opened()
		text, err := d.Decode(path)
		if err != nil {
			rlog.Debugf("%s decoder skipped %s: %v", d.Name(), path, err)
			continue
		}
		matches, err := s.collect(strings.NewReader(text))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s (%s): %v", path, d.Name(), err))
			continue
		}
		if len(matches) == 0 {
			continue
		}
		r := newFileResult(path, false)
		r.Path = fmt.Sprintf("%s (%s)", path, d.Name())
		r.Decoder = d.Name()
		r.Matches = matches
		results = append(results, r)
	}
	return results, errs
}

// scanOne is the single-file check used by name searches: the plain match
// if there is one, otherwise the first decoder match.
func (s *contentScanner) scanOne(path string) (*FileResult, []string) {
	results, errs := s.scan(path)
	if len(results) == 0 {
		return nil, errs
	}
	r := results[0]
	r.Path = path
	return &r, errs
}

func (s *contentScanner) grepFile(path string) ([]Match, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s.opened()
	return s.collect(f)
}

func (s *contentScanner) collect(r io.Reader) ([]Match, error) {
	var matches []Match
	err := s.matcher.Search(r, func(lm grep.LineMatch) bool {
		matches = append(matches, Match{LineNumber: lm.Number, Text: lm.Text, Ranges: lm.Spans})
		return true
	})
	return matches, err
}

func (s *contentScanner) opened() {
	s.scanned.Inc()
	metrics.FilesScanned.Inc()
}

// runContent searches the content of every regular file under the root
// and reports all of them in one contentFilesMsg.
func (j *job) runContent() {
	start := time.Now()

	m, err := j.compileContent()
	if err != nil {
		rlog.Warnf("content search %d: %v", j.gen, err)
		return
	}
	s := j.scanner(m)

	var (
		mu      sync.Mutex
		results []FileResult
		index   = make(map[string]int)
		errs    []string
	)

	walk.Walk(j.req.RootDir, j.walkOptions(), func(e walk.Entry, err error) walk.State {
		if j.stopped() {
			return walk.Quit
		}
		if err != nil {
			mu.Lock()
			errs = append(errs, entryError(e, err))
			mu.Unlock()
			return walk.Continue
		}
		if !e.IsRegular() {
			return walk.Continue
		}

		found, scanErrs := s.scan(e.FullPath)

		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, scanErrs...)
		for _, r := range found {
			if i, ok := index[r.Path]; ok {
				results[i].Matches = append(results[i].Matches, r.Matches...)
				continue
			}
			index[r.Path] = len(results)
			results = append(results, r)
		}
		return walk.Continue
	})

	j.reported = time.Since(start)
	j.box.push(contentFilesMsg{gen: j.gen, results: results, elapsed: j.reported})
	j.sendErrors(errs...)
}
