package search

import (
	"fmt"
	"time"

	"go.uber.org/atomic"

	"github.com/kk-code-lab/rfind/internal/decode"
	"github.com/kk-code-lab/rfind/internal/grep"
	"github.com/kk-code-lab/rfind/internal/options"
	"github.com/kk-code-lab/rfind/internal/walk"
)

// job is everything one generation's worker sees: an options snapshot and
// the generation's own cancel flag and progress counter. It never touches
// coordinator state.
type job struct {
	gen       uint64
	req       Request
	opts      options.Options
	decoders  []decode.Decoder
	box       *mailbox
	cancelled *atomic.Bool
	scanned   *atomic.Int64

	// reported is elapsed time already sent with contentFilesMsg, so Done
	// only carries the remainder.
	reported time.Duration
}

func (j *job) stopped() bool {
	return j.cancelled.Load()
}

func (j *job) walkOptions() walk.Options {
	return walk.Options{
		FollowLinks:    j.opts.Name.FollowLinks,
		SameFilesystem: j.opts.Name.SameFilesystem,
		HideHidden:     j.opts.Name.HideHidden,
		RespectIgnore:  j.opts.Name.RespectIgnore,
		Threads:        j.opts.Threads,
	}
}

func (j *job) compileContent() (*grep.Matcher, error) {
	return grep.Compile(j.req.ContentPattern, j.opts.Content.CaseSensitive, j.opts.Content.Literal)
}

func (j *job) compileName() (*grep.Matcher, error) {
	return grep.Compile(j.req.NamePattern, j.opts.Name.CaseSensitive, false)
}

func (j *job) scanner(m *grep.Matcher) *contentScanner {
	var decoders []decode.Decoder
	if j.opts.Content.Extended {
		decoders = j.decoders
	}
	return &contentScanner{
		matcher:   m,
		decoders:  decoders,
		cancelled: j.cancelled,
		scanned:   j.scanned,
	}
}

func (j *job) sendErrors(errs ...string) {
	if len(errs) == 0 {
		return
	}
	j.box.push(errorsMsg{gen: j.gen, errors: errs})
}

func entryError(e walk.Entry, err error) string {
	return fmt.Sprintf("%s: %v", e.FullPath, err)
}
