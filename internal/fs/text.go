package fs

import (
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// NewTextReader wraps r so that content starting with a UTF-8 or UTF-16 BOM
// is delivered as UTF-8 without the BOM. Anything else passes through as is.
func NewTextReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(transform.Nop))
}
