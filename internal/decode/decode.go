// Package decode turns document formats that are not plain text into
// searchable text.
package decode

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned when a decoder is asked for a file it does not
// understand.
var ErrUnsupported = errors.New("unsupported document")

// Decoder converts one family of documents to text.
type Decoder interface {
	// Name identifies the decoder in results, e.g. "pdf".
	Name() string
	// MatchesExtension reports whether the decoder handles ext, given
	// lowercased and without the leading dot.
	MatchesExtension(ext string) bool
	Decode(path string) (string, error)
}

// Default returns every built-in decoder.
func Default() []Decoder {
	return []Decoder{PDF{}, Office{}}
}

// Ext returns the lowercased extension of path without the dot.
func Ext(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// For returns the decoders from list that handle path.
func For(list []Decoder, path string) []Decoder {
	ext := Ext(path)
	if ext == "" {
		return nil
	}
	var out []Decoder
	for _, d := range list {
		if d.MatchesExtension(ext) {
			out = append(out, d)
		}
	}
	return out
}
