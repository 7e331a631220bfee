// Package walk enumerates a directory tree concurrently, honouring ignore
// files, hidden-entry filtering, symlink following and filesystem boundaries.
package walk

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/atomic"

	fsutil "github.com/kk-code-lab/rfind/internal/fs"
	"github.com/kk-code-lab/rfind/internal/rlog"
)

// Entry is a single walked filesystem entry.
type Entry = fsutil.Entry

// State tells the walker how to proceed after visiting an entry.
type State int

const (
	// Continue visits the entry's children when it is a directory.
	Continue State = iota
	// Skip does not descend into the entry.
	Skip
	// Quit stops the whole walk as soon as every worker notices.
	Quit
)

// Options configure a walk.
type Options struct {
	FollowLinks    bool
	SameFilesystem bool
	HideHidden     bool
	RespectIgnore  bool
	// Threads bounds the number of directories read concurrently.
	// Zero means runtime.NumCPU().
	Threads int
}

// Visitor receives every entry that survives filtering. A non-nil error
// describes an entry that could not be read; the walk goes on regardless.
// Visitors are called from several goroutines at once.
type Visitor func(Entry, error) State

// Walk visits every entry below root. The root directory itself is not
// visited; a root that is a file is visited as the only entry.
func Walk(root string, opts Options, visit Visitor) {
	// Entry paths are built with filepath.Join, so ignore rules need a
	// root in the same clean form.
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		visit(Entry{Name: filepath.Base(root), FullPath: root}, fmt.Errorf("stat root: %w", err))
		return
	}
	if !info.IsDir() {
		visit(Entry{Name: info.Name(), FullPath: root, Mode: info.Mode()}, nil)
		return
	}

	w := newWalker(root, info, opts, visit)
	w.run()
}

type dirNode struct {
	abs    string
	rel    string
	depth  int
	ignore *GitignoreMatcher
}

type walker struct {
	root     string
	opts     Options
	visit    Visitor
	ignores  *ignoreProvider
	rootDev  uint64
	checkDev bool
	quit     *atomic.Bool
	seenDirs sync.Map // real paths of descended directories, only when following links

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []dirNode
	active int
}

func newWalker(root string, info os.FileInfo, opts Options, visit Visitor) *walker {
	w := &walker{
		root:  root,
		opts:  opts,
		visit: visit,
		quit:  atomic.NewBool(false),
	}
	w.cond = sync.NewCond(&w.mu)

	if opts.RespectIgnore {
		w.ignores = newIgnoreProvider(root)
	}
	if opts.SameFilesystem {
		w.rootDev, w.checkDev = fsutil.DeviceID(root, info)
		if !w.checkDev {
			rlog.Debugf("no device id for %s, not checking filesystem boundaries", root)
		}
	}
	if opts.FollowLinks {
		w.markSeen(root)
	}
	return w
}

func (w *walker) run() {
	threads := w.opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	w.queue = append(w.queue, dirNode{abs: w.root, rel: ".", ignore: w.matcherFor(".")})

	p := pool.New().WithMaxGoroutines(threads)
	for i := 0; i < threads; i++ {
		p.Go(w.work)
	}
	p.Wait()
}

func (w *walker) work() {
	for {
		node, ok := w.next()
		if !ok {
			return
		}
		w.visitDir(node)
	}
}

// visitDir keeps the active count balanced when a visitor panics, so the
// remaining workers exit and the pool can re-raise the panic.
func (w *walker) visitDir(node dirNode) {
	defer w.done()
	defer func() {
		if r := recover(); r != nil {
			w.stop()
			panic(r)
		}
	}()
	w.readDir(node)
}

// next blocks until a directory is available or the walk is over.
func (w *walker) next() (dirNode, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for len(w.queue) == 0 && w.active > 0 && !w.quit.Load() {
		w.cond.Wait()
	}
	if w.quit.Load() || len(w.queue) == 0 {
		w.cond.Broadcast()
		return dirNode{}, false
	}

	node := w.queue[0]
	w.queue[0] = dirNode{}
	w.queue = w.queue[1:]
	w.active++
	return node, true
}

func (w *walker) done() {
	w.mu.Lock()
	w.active--
	if w.active == 0 && len(w.queue) == 0 {
		w.cond.Broadcast()
	}
	w.mu.Unlock()
}

func (w *walker) push(node dirNode) {
	w.mu.Lock()
	w.queue = append(w.queue, node)
	w.cond.Signal()
	w.mu.Unlock()
}

func (w *walker) stop() {
	w.mu.Lock()
	w.quit.Store(true)
	w.cond.Broadcast()
	w.mu.Unlock()
}

func (w *walker) readDir(node dirNode) {
	entries, err := os.ReadDir(node.abs)
	if err != nil {
		dir := Entry{Name: filepath.Base(node.abs), FullPath: node.abs, IsDir: true, Depth: node.depth}
		if w.visit(dir, fmt.Errorf("read dir: %w", err)) == Quit {
			w.stop()
			return
		}
	}

	for _, de := range entries {
		if w.quit.Load() {
			return
		}

		rel := joinRelPath(node.rel, de.Name())
		entry, descend, resolveErr := w.resolve(de, filepath.Join(node.abs, de.Name()), node.depth+1)
		if resolveErr != nil {
			if w.visit(entry, resolveErr) == Quit {
				w.stop()
				return
			}
			continue
		}
		if w.shouldSkip(entry, node.ignore) {
			continue
		}

		switch w.visit(entry, nil) {
		case Quit:
			w.stop()
			return
		case Skip:
			continue
		}

		if descend {
			w.push(dirNode{abs: entry.FullPath, rel: rel, depth: entry.Depth, ignore: w.matcherFor(rel)})
		}
	}
}

// resolve builds the entry for de and reports whether the walk should descend.
func (w *walker) resolve(de fs.DirEntry, full string, depth int) (Entry, bool, error) {
	entry := Entry{
		Name:     de.Name(),
		FullPath: full,
		IsDir:    de.IsDir(),
		Depth:    depth,
		Mode:     de.Type(),
	}

	if de.Type()&fs.ModeSymlink != 0 {
		entry.IsSymlink = true
		if !w.opts.FollowLinks {
			return entry, false, nil
		}
		info, err := os.Stat(full)
		if err != nil {
			return entry, false, fmt.Errorf("follow symlink: %w", err)
		}
		entry.Mode = info.Mode()
		entry.IsDir = info.IsDir()
		if !entry.IsDir {
			return entry, false, nil
		}
		return entry, w.sameDevice(full, info) && w.markSeen(full), nil
	}

	if !entry.IsDir {
		return entry, false, nil
	}
	if w.checkDev {
		info, err := de.Info()
		if err != nil {
			return entry, false, fmt.Errorf("stat dir: %w", err)
		}
		if !w.sameDevice(full, info) {
			return entry, false, nil
		}
	}
	if w.opts.FollowLinks && !w.markSeen(full) {
		return entry, false, nil
	}
	return entry, true, nil
}

func (w *walker) sameDevice(path string, info os.FileInfo) bool {
	if !w.checkDev {
		return true
	}
	dev, ok := fsutil.DeviceID(path, info)
	return !ok || dev == w.rootDev
}

// markSeen records the real path of dir and reports whether it is new.
// Following symlinks without this check loops forever on cyclic links.
func (w *walker) markSeen(dir string) bool {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		resolved = dir
	}
	_, loaded := w.seenDirs.LoadOrStore(resolved, struct{}{})
	return !loaded
}

func (w *walker) shouldSkip(entry Entry, matcher *GitignoreMatcher) bool {
	if fsutil.IsProtectedSystemEntry(entry.FullPath, entry.Name) {
		return true
	}
	if w.opts.HideHidden && fsutil.IsHidden(entry.FullPath, entry.Name) {
		return true
	}
	if w.ignores == nil {
		return false
	}
	if entry.IsDir && entry.Name == ".git" {
		return true
	}
	return matcher.MatchWithType(entry.FullPath, entry.IsDir)
}

func (w *walker) matcherFor(rel string) *GitignoreMatcher {
	if w.ignores == nil {
		return nil
	}
	return w.ignores.MatcherFor(rel)
}

func joinRelPath(parent, child string) string {
	if parent == "." || parent == "" {
		return child
	}
	return filepath.Join(parent, child)
}
