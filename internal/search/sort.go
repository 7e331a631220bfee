package search

import (
	"slices"
	"strings"

	"github.com/kk-code-lab/rfind/internal/options"
)

// SortResults orders entries in place by key. The sort is stable, and
// SortNone keeps discovery order.
func SortResults(entries []FileResult, key options.SortKey) {
	var field func(FileResult) string
	switch key {
	case options.SortPath:
		field = func(r FileResult) string { return r.Path }
	case options.SortName:
		field = func(r FileResult) string { return r.Name }
	case options.SortExtension:
		field = func(r FileResult) string { return r.Extension }
	default:
		return
	}

	slices.SortStableFunc(entries, func(a, b FileResult) int {
		return strings.Compare(field(a), field(b))
	})
}
