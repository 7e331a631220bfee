package search

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/kk-code-lab/rfind/internal/grep"
)

// MatchSpan is a half-open byte range inside a line or a name.
type MatchSpan = grep.MatchSpan

// Request describes one search. Either pattern may be empty, not both.
type Request struct {
	RootDir        string
	NamePattern    string
	ContentPattern string
}

func (r Request) mode() string {
	switch {
	case r.NamePattern != "" && r.ContentPattern != "":
		return "name+content"
	case r.NamePattern != "":
		return "name"
	case r.ContentPattern != "":
		return "content"
	default:
		return "empty"
	}
}

// Match is one matching line. LineNumber starts at 1.
type Match struct {
	LineNumber int
	Text       string
	Ranges     []MatchSpan
}

// FileResult is one found file or directory. Matches is only filled by
// content searches and is always empty for directories.
type FileResult struct {
	Path      string
	Name      string
	Extension string
	IsDir     bool
	Matches   []Match
	// Decoder names the extended decoder that produced Matches, empty for
	// plain text.
	Decoder    string
	NameRanges []MatchSpan
}

func newFileResult(path string, isDir bool) FileResult {
	name := filepath.Base(path)
	return FileResult{
		Path:      path,
		Name:      name,
		Extension: fileExtension(name),
		IsDir:     isDir,
	}
}

// fileExtension returns the extension without the dot. Dotfiles such as
// ".bashrc" have none.
func fileExtension(name string) string {
	ext := filepath.Ext(name)
	if ext == name {
		return ""
	}
	return strings.TrimPrefix(ext, ".")
}

// FinalResults is the complete, sorted result set of one generation.
type FinalResults struct {
	Entries    []FileResult
	Elapsed    time.Duration
	Generation uint64
}

// Paths lists the paths of entries, ready for export.
func Paths(entries []FileResult) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}

// Names lists the base names of entries, ready for export.
func Names(entries []FileResult) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}
