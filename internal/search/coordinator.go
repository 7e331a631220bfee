// Package search coordinates concurrent name and content searches and
// streams their results.
//
// Every Search call starts a new generation. Workers stamp their messages
// with it and a single aggregator goroutine drops anything that is not from
// the latest generation, so superseded searches never need to be waited for.
package search

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/atomic"

	"github.com/kk-code-lab/rfind/internal/clipboard"
	"github.com/kk-code-lab/rfind/internal/decode"
	"github.com/kk-code-lab/rfind/internal/grep"
	"github.com/kk-code-lab/rfind/internal/metrics"
	"github.com/kk-code-lab/rfind/internal/options"
	"github.com/kk-code-lab/rfind/internal/rlog"
)

var (
	ErrNoPattern  = errors.New("name or content pattern is required")
	ErrInvalidDir = errors.New("directory does not exist")
)

type Config struct {
	// Store persists options. Nil keeps them in memory only.
	Store options.Store
	// Decoders used by extended content search. Nil means decode.Default().
	Decoders []decode.Decoder
	// Exporter receives exported lists. Nil means clipboard.System().
	Exporter         clipboard.Exporter
	ProgressInterval time.Duration
}

type Coordinator struct {
	cfg Config
	box *mailbox

	mu         sync.Mutex
	opts       options.Options
	generation uint64
	// Flag and progress counter of the current generation. Superseded
	// workers keep their own, so they can't disturb these.
	cancel  *atomic.Bool
	scanned *atomic.Int64

	aggregatorDone chan struct{}
	closeOnce      sync.Once
}

// NewCoordinator loads options from cfg.Store and starts the aggregator.
// Events are sent to out, which is closed by Close. The consumer must keep
// receiving until then.
func NewCoordinator(out chan<- Event, cfg Config) *Coordinator {
	if cfg.Decoders == nil {
		cfg.Decoders = decode.Default()
	}
	if cfg.Exporter == nil {
		cfg.Exporter = clipboard.System()
	}

	opts := options.Default()
	if cfg.Store != nil {
		loaded, err := cfg.Store.Load()
		if err != nil {
			rlog.Warnf("couldn't load options, using defaults: %v", err)
		} else {
			opts = loaded
		}
	}

	c := &Coordinator{
		cfg:            cfg,
		box:            newMailbox(),
		opts:           opts,
		aggregatorDone: make(chan struct{}),
	}

	agg := newAggregator(c.box, out, cfg.ProgressInterval)
	go func() {
		defer close(c.aggregatorDone)
		agg.run()
	}()

	return c
}

// Search starts a new generation and returns its id. The previous search,
// if still running, is cancelled. Callers are expected to Validate first;
// an invalid pattern only makes the search come back empty.
func (c *Coordinator) Search(req Request) uint64 {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel.Store(true)
	}
	cancelled := atomic.NewBool(false)
	scanned := atomic.NewInt64(0)
	c.cancel = cancelled
	c.scanned = scanned
	c.generation++
	gen := c.generation

	c.opts.Remember(req.RootDir, req.NamePattern, req.ContentPattern)
	snapshot := c.opts.Clone()

	// Pushed under the lock so start messages arrive in generation order.
	c.box.push(startMsg{gen: gen, sort: snapshot.Sort, scanned: scanned})
	c.mu.Unlock()

	metrics.SearchStarted.WithLabelValues(req.mode()).Inc()
	rlog.Debugf("search %d: %+v", gen, req)

	j := &job{
		gen:       gen,
		req:       req,
		opts:      snapshot,
		decoders:  c.cfg.Decoders,
		box:       c.box,
		cancelled: cancelled,
		scanned:   scanned,
	}

	switch {
	case req.NamePattern != "":
		c.spawn(j, j.runNames)
	case req.ContentPattern != "":
		c.spawn(j, j.runContent)
	default:
		c.box.push(doneMsg{gen: gen})
	}
	return gen
}

// spawn runs task in the background. A panic is reported as an error of
// the generation and Done is sent regardless.
func (c *Coordinator) spawn(j *job, task func()) {
	go func() {
		start := time.Now()

		var wg conc.WaitGroup
		wg.Go(task)
		if r := wg.WaitAndRecover(); r != nil {
			rlog.Errorf("search %d panicked: %v", j.gen, r.Value)
			j.sendErrors(fmt.Sprintf("search task panicked: %v", r.Value))
		}

		j.box.push(doneMsg{
			gen:       j.gen,
			elapsed:   time.Since(start) - j.reported,
			cancelled: j.stopped(),
		})
	}()
}

// Stop cancels the current search. Workers notice at their next entry or
// file, and the generation ends without a Final event.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel.Store(true)
	}
}

// Scanned is the number of files opened by the current search.
func (c *Coordinator) Scanned() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.scanned == nil {
		return 0
	}
	return c.scanned.Load()
}

func (c *Coordinator) Options() options.Options {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.opts.Clone()
}

// SetOptions replaces the options. Running searches keep their snapshot.
func (c *Coordinator) SetOptions(o options.Options) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.opts = o.Clone()
}

func (c *Coordinator) SetSort(key options.SortKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.opts.Sort = key
}

// Save persists the options through the configured store.
func (c *Coordinator) Save() error {
	if c.cfg.Store == nil {
		return nil
	}
	if err := c.cfg.Store.Save(c.Options()); err != nil {
		return fmt.Errorf("couldn't save options: %w", err)
	}
	return nil
}

// SaveAndQuit saves the options and shuts the coordinator down.
func (c *Coordinator) SaveAndQuit() error {
	err := c.Save()
	c.Close()
	return err
}

// Close cancels the current search, stops the aggregator and closes the
// output channel. Later calls are no-ops.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.Stop()
		c.box.push(quitMsg{})
		<-c.aggregatorDone
	})
}

// DirIsValid reports whether dir exists. A file is accepted too; searching
// it checks that single file.
func (c *Coordinator) DirIsValid(dir string) bool {
	if dir == "" {
		return false
	}
	_, err := os.Stat(dir)
	return err == nil
}

// Validate checks a request before it is passed to Search.
func (c *Coordinator) Validate(req Request) error {
	if req.NamePattern == "" && req.ContentPattern == "" {
		return ErrNoPattern
	}
	if !c.DirIsValid(req.RootDir) {
		return fmt.Errorf("%w: %q", ErrInvalidDir, req.RootDir)
	}

	opts := c.Options()
	if req.NamePattern != "" {
		if _, err := grep.Compile(req.NamePattern, opts.Name.CaseSensitive, false); err != nil {
			return fmt.Errorf("name: %w", err)
		}
	}
	if req.ContentPattern != "" {
		if _, err := grep.Compile(req.ContentPattern, opts.Content.CaseSensitive, opts.Content.Literal); err != nil {
			return fmt.Errorf("content: %w", err)
		}
	}
	return nil
}

// Export hands items, usually Paths or Names of results, to the exporter.
func (c *Coordinator) Export(items []string) error {
	if err := c.cfg.Exporter.Export(items); err != nil {
		return fmt.Errorf("couldn't export %d items: %w", len(items), err)
	}
	return nil
}
