package search

import (
	"time"

	"go.uber.org/atomic"

	"github.com/kk-code-lab/rfind/internal/metrics"
	"github.com/kk-code-lab/rfind/internal/options"
	"github.com/kk-code-lab/rfind/internal/rlog"
)

const DefaultProgressInterval = 150 * time.Millisecond

// aggregator is the only reader of the mailbox and the only owner of the
// result buffer. It is either idle or accumulating one generation.
type aggregator struct {
	box      *mailbox
	out      chan<- Event
	interval time.Duration

	// latest is the most recently started generation; accumulating says
	// whether its Done is still pending.
	latest       uint64
	accumulating bool
	sort         options.SortKey
	buffer       []FileResult
	seen         map[string]struct{}
	elapsed      time.Duration
	scanned      *atomic.Int64
	lastScanned  int64
}

func newAggregator(box *mailbox, out chan<- Event, interval time.Duration) *aggregator {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &aggregator{
		box:      box,
		out:      out,
		interval: interval,
	}
}

// run processes messages until quit, then closes out.
func (a *aggregator) run() {
	defer close(a.out)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	var batch []message
	for {
		select {
		case <-a.box.ready():
			batch = a.box.drain(batch)
			for _, msg := range batch {
				if !a.handle(msg) {
					return
				}
			}
		case <-ticker.C:
			a.reportProgress()
		}
	}
}

// handle applies one message and reports whether the loop goes on.
func (a *aggregator) handle(msg message) bool {
	switch m := msg.(type) {
	case startMsg:
		a.start(m)

	case fileFoundMsg:
		if !a.isCurrent(m.gen) {
			a.dropStale(m)
			return true
		}
		if a.add(m.result) {
			r := m.result
			metrics.InterimResults.Inc()
			a.emit(Event{Kind: EventInterim, Generation: m.gen, Result: &r})
		}

	case contentFilesMsg:
		if !a.isCurrent(m.gen) {
			a.dropStale(m)
			return true
		}
		for _, r := range m.results {
			a.add(r)
		}
		a.elapsed += m.elapsed

	case errorsMsg:
		if m.gen != a.latest {
			a.dropStale(m)
			return true
		}
		if len(m.errors) > 0 {
			metrics.SearchErrors.Add(float64(len(m.errors)))
			a.emit(Event{Kind: EventErrors, Generation: m.gen, Errors: m.errors})
		}

	case doneMsg:
		if !a.isCurrent(m.gen) {
			a.dropStale(m)
			return true
		}
		a.finish(m)

	case quitMsg:
		return false
	}
	return true
}

func (a *aggregator) start(m startMsg) {
	a.latest = m.gen
	a.accumulating = true
	a.sort = m.sort
	a.buffer = nil
	a.seen = make(map[string]struct{})
	a.elapsed = 0
	a.scanned = m.scanned
	a.lastScanned = 0
}

func (a *aggregator) isCurrent(gen uint64) bool {
	return a.accumulating && gen == a.latest
}

// add buffers r unless its path is already buffered.
func (a *aggregator) add(r FileResult) bool {
	if _, ok := a.seen[r.Path]; ok {
		return false
	}
	a.seen[r.Path] = struct{}{}
	a.buffer = append(a.buffer, r)
	return true
}

func (a *aggregator) finish(m doneMsg) {
	a.elapsed += m.elapsed
	a.accumulating = false

	entries := a.buffer
	a.buffer = nil
	a.seen = nil

	metrics.SearchDuration.Observe(a.elapsed.Seconds())
	if m.cancelled {
		metrics.SearchCancelled.Inc()
		rlog.Debugf("search %d stopped after %s with %d results", m.gen, a.elapsed, len(entries))
		return
	}

	SortResults(entries, a.sort)
	metrics.SearchCompleted.Inc()
	rlog.Debugf("search %d finished in %s with %d results", m.gen, a.elapsed, len(entries))

	a.emit(Event{
		Kind:       EventFinal,
		Generation: m.gen,
		Final: &FinalResults{
			Entries:    entries,
			Elapsed:    a.elapsed,
			Generation: m.gen,
		},
	})
}

func (a *aggregator) reportProgress() {
	if !a.accumulating || a.scanned == nil {
		return
	}
	n := a.scanned.Load()
	if n == a.lastScanned {
		return
	}
	a.lastScanned = n
	a.emit(Event{Kind: EventProgress, Generation: a.latest, Scanned: n})
}

func (a *aggregator) dropStale(m message) {
	metrics.StaleMessagesDropped.Inc()
	rlog.Debugf("dropped %T of generation %d, current is %d", m, m.generation(), a.latest)
}

func (a *aggregator) emit(ev Event) {
	a.out <- ev
}
