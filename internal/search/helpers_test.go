package search

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kk-code-lab/rfind/internal/clipboard"
	"github.com/kk-code-lab/rfind/internal/options"
)

const eventTimeout = 10 * time.Second

type testCoordinator struct {
	*Coordinator
	events <-chan Event
}

func newTestCoordinator(t *testing.T, cfg Config) *testCoordinator {
	t.Helper()

	if cfg.Exporter == nil {
		cfg.Exporter = clipboard.Func(func([]string) error { return nil })
	}
	events := make(chan Event, 8192)
	c := NewCoordinator(events, cfg)

	opts := c.Options()
	// Global git excludes of the machine running the tests must not leak in.
	opts.Name.RespectIgnore = false
	c.SetOptions(opts)

	t.Cleanup(func() {
		go func() {
			for range events {
			}
		}()
		c.Close()
	})
	return &testCoordinator{Coordinator: c, events: events}
}

func (tc *testCoordinator) setOptions(mutate func(*options.Options)) {
	opts := tc.Options()
	mutate(&opts)
	tc.SetOptions(opts)
}

// untilFinal collects events until the Final of gen arrives.
func (tc *testCoordinator) untilFinal(t *testing.T, gen uint64) (*FinalResults, []Event) {
	t.Helper()

	var seen []Event
	timeout := time.After(eventTimeout)
	for {
		select {
		case ev, ok := <-tc.events:
			require.True(t, ok, "events closed before final of generation %d", gen)
			seen = append(seen, ev)
			if ev.Kind == EventFinal && ev.Generation == gen {
				return ev.Final, seen
			}
		case <-timeout:
			require.FailNow(t, "timed out waiting for final", "generation %d, saw %d events", gen, len(seen))
		}
	}
}

// collectFor gathers events for d.
func (tc *testCoordinator) collectFor(d time.Duration) []Event {
	var seen []Event
	timeout := time.After(d)
	for {
		select {
		case ev, ok := <-tc.events:
			if !ok {
				return seen
			}
			seen = append(seen, ev)
		case <-timeout:
			return seen
		}
	}
}

func ofKind(events []Event, kind EventKind) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

// helloTree is a.txt "hello world" and b.log "hello".
func helloTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.txt": "hello world",
		"b.log": "hello",
	})
	return root
}

func largeTree(t *testing.T, dirs, filesPerDir int) string {
	t.Helper()
	root := t.TempDir()
	for d := 0; d < dirs; d++ {
		dir := filepath.Join(root, "d"+strconv.Itoa(d))
		require.NoError(t, os.MkdirAll(dir, 0o755))
		for f := 0; f < filesPerDir; f++ {
			require.NoError(t, os.WriteFile(filepath.Join(dir, "f"+strconv.Itoa(f)+".txt"), []byte("needle\n"), 0o644))
		}
	}
	return root
}

func baseNames(entries []FileResult) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = filepath.Base(e.Path)
	}
	return out
}
