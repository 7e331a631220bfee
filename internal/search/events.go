package search

import (
	"fmt"
	"time"

	"go.uber.org/atomic"

	"github.com/kk-code-lab/rfind/internal/options"
)

type EventKind int

const (
	// EventInterim carries one result as soon as it is found.
	EventInterim EventKind = iota
	// EventProgress carries the number of files opened so far.
	EventProgress
	// EventFinal closes a generation with the sorted result set.
	EventFinal
	// EventErrors carries I/O and traversal errors.
	EventErrors
)

func (k EventKind) String() string {
	switch k {
	case EventInterim:
		return "interim"
	case EventProgress:
		return "progress"
	case EventFinal:
		return "final"
	case EventErrors:
		return "errors"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is what a Coordinator emits. Only the field matching Kind is set.
type Event struct {
	Kind       EventKind
	Generation uint64

	Result  *FileResult
	Scanned int64
	Final   *FinalResults
	Errors  []string
}

// message is the internal traffic between workers and the aggregator.
type message interface {
	generation() uint64
}

type startMsg struct {
	gen  uint64
	sort options.SortKey
	// scanned is the progress counter of this generation only.
	scanned *atomic.Int64
}

type fileFoundMsg struct {
	gen    uint64
	result FileResult
}

// contentFilesMsg is the bulk result of a content-only search.
type contentFilesMsg struct {
	gen     uint64
	results []FileResult
	elapsed time.Duration
}

type errorsMsg struct {
	gen    uint64
	errors []string
}

type doneMsg struct {
	gen       uint64
	elapsed   time.Duration
	cancelled bool
}

type quitMsg struct{}

func (m startMsg) generation() uint64        { return m.gen }
func (m fileFoundMsg) generation() uint64    { return m.gen }
func (m contentFilesMsg) generation() uint64 { return m.gen }
func (m errorsMsg) generation() uint64       { return m.gen }
func (m doneMsg) generation() uint64         { return m.gen }
func (quitMsg) generation() uint64           { return 0 }
