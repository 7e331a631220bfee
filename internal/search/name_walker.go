package search

import (
	"golang.org/x/text/unicode/norm"

	"github.com/kk-code-lab/rfind/internal/options"
	"github.com/kk-code-lab/rfind/internal/rlog"
	"github.com/kk-code-lab/rfind/internal/walk"
)

// runNames reports every entry whose base name matches, one fileFoundMsg
// at a time. With a content pattern, files must also match by content
// and directories are never reported.
func (j *job) runNames() {
	nameMatcher, err := j.compileName()
	if err != nil {
		rlog.Warnf("name search %d: %v", j.gen, err)
		return
	}

	var scanner *contentScanner
	if j.req.ContentPattern != "" {
		contentMatcher, err := j.compileContent()
		if err != nil {
			rlog.Warnf("name search %d: %v", j.gen, err)
			return
		}
		scanner = j.scanner(contentMatcher)
	}

	types := j.opts.Name.FileTypes
	walk.Walk(j.req.RootDir, j.walkOptions(), func(e walk.Entry, err error) walk.State {
		if j.stopped() {
			return walk.Quit
		}
		if err != nil {
			j.sendErrors(entryError(e, err))
			return walk.Continue
		}
		if !typeAllowed(e, types) {
			return walk.Continue
		}

		// Decomposed names (macOS) must match composed patterns.
		name := norm.NFC.String(e.Name)
		if !nameMatcher.MatchString(name) {
			return walk.Continue
		}

		result := newFileResult(e.FullPath, e.IsDir)
		result.Name = name
		result.NameRanges = nameMatcher.Spans(name)

		if scanner != nil {
			if e.IsDir {
				return walk.Continue
			}
			found, errs := scanner.scanOne(e.FullPath)
			j.sendErrors(errs...)
			if found == nil {
				return walk.Continue
			}
			result.Matches = found.Matches
			result.Decoder = found.Decoder
		}

		j.box.push(fileFoundMsg{gen: j.gen, result: result})
		return walk.Continue
	})
}

func typeAllowed(e walk.Entry, types options.FileTypes) bool {
	switch types {
	case options.FileTypesFiles:
		return e.IsRegular()
	case options.FileTypesDirectories:
		return e.IsDir
	default:
		return true
	}
}
