package search

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kk-code-lab/rfind/internal/clipboard"
	"github.com/kk-code-lab/rfind/internal/decode"
	"github.com/kk-code-lab/rfind/internal/grep"
	"github.com/kk-code-lab/rfind/internal/options"
)

type fakeDecoder struct {
	text string
}

func (fakeDecoder) Name() string                     { return "fake" }
func (fakeDecoder) MatchesExtension(ext string) bool { return ext == "fake" }
func (d fakeDecoder) Decode(string) (string, error)  { return d.text, nil }

type panicDecoder struct{}

func (panicDecoder) Name() string                     { return "boom" }
func (panicDecoder) MatchesExtension(ext string) bool { return ext == "boom" }
func (panicDecoder) Decode(string) (string, error)    { panic("decoder exploded") }

func TestContentSearchFindsEveryFile(t *testing.T) {
	r := require.New(t)
	root := helloTree(t)
	tc := newTestCoordinator(t, Config{})

	gen := tc.Search(Request{RootDir: root, ContentPattern: "hello"})
	final, seen := tc.untilFinal(t, gen)

	r.Empty(ofKind(seen, EventInterim), "content-only searches report in bulk")
	r.Len(final.Entries, 2)
	names := baseNames(final.Entries)
	sort.Strings(names)
	r.Equal([]string{"a.txt", "b.log"}, names)
	for _, e := range final.Entries {
		r.Len(e.Matches, 1)
		r.Equal(1, e.Matches[0].LineNumber)
		r.Empty(e.Decoder)
	}
	r.Equal(gen, final.Generation)
}

func TestNameSearchFindsLog(t *testing.T) {
	r := require.New(t)
	root := helloTree(t)
	tc := newTestCoordinator(t, Config{})

	gen := tc.Search(Request{RootDir: root, NamePattern: `\.log$`})
	final, seen := tc.untilFinal(t, gen)

	r.Len(final.Entries, 1)
	entry := final.Entries[0]
	r.Equal(filepath.Join(root, "b.log"), entry.Path)
	r.Equal("b.log", entry.Name)
	r.Equal("log", entry.Extension)
	r.Empty(entry.Matches)
	r.Equal([]MatchSpan{{Start: 1, End: 5}}, entry.NameRanges)

	interim := ofKind(seen, EventInterim)
	r.Len(interim, 1)
	r.Equal(entry.Path, interim[0].Result.Path)
}

func TestNameAndContentSearch(t *testing.T) {
	r := require.New(t)
	root := helloTree(t)
	tc := newTestCoordinator(t, Config{})

	gen := tc.Search(Request{RootDir: root, NamePattern: `\.txt$`, ContentPattern: "world"})
	final, _ := tc.untilFinal(t, gen)

	r.Len(final.Entries, 1)
	entry := final.Entries[0]
	r.Equal("a.txt", entry.Name)
	r.Equal([]Match{{LineNumber: 1, Text: "hello world", Ranges: []MatchSpan{{Start: 6, End: 11}}}}, entry.Matches)
}

func TestNameAndContentExcludesNonMatchingContent(t *testing.T) {
	root := helloTree(t)
	tc := newTestCoordinator(t, Config{})

	gen := tc.Search(Request{RootDir: root, NamePattern: ".", ContentPattern: "world"})
	final, _ := tc.untilFinal(t, gen)

	require.Equal(t, []string{"a.txt"}, baseNames(final.Entries))
}

func TestSingleFileRoot(t *testing.T) {
	root := helloTree(t)
	tc := newTestCoordinator(t, Config{})

	gen := tc.Search(Request{RootDir: filepath.Join(root, "a.txt"), NamePattern: "a", ContentPattern: "world"})
	final, _ := tc.untilFinal(t, gen)

	require.Len(t, final.Entries, 1)
	require.Len(t, final.Entries[0].Matches, 1)
}

func TestInterimPlusBulkEqualsFinal(t *testing.T) {
	r := require.New(t)
	root := largeTree(t, 5, 20)
	tc := newTestCoordinator(t, Config{})

	gen := tc.Search(Request{RootDir: root, NamePattern: `^f\d+\.txt$`})
	final, seen := tc.untilFinal(t, gen)

	interim := ofKind(seen, EventInterim)
	r.Len(final.Entries, 100)
	r.Len(interim, len(final.Entries))

	paths := make(map[string]struct{})
	for _, e := range final.Entries {
		paths[e.Path] = struct{}{}
	}
	r.Len(paths, 100, "no duplicate paths")
	for _, ev := range interim {
		r.Contains(paths, ev.Result.Path)
	}
}

// gateDecoder blocks its first Decode call until release is closed.
type gateDecoder struct {
	once    *sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGateDecoder() gateDecoder {
	return gateDecoder{once: &sync.Once{}, entered: make(chan struct{}), release: make(chan struct{})}
}

func (gateDecoder) Name() string                     { return "gate" }
func (gateDecoder) MatchesExtension(ext string) bool { return ext == "txt" }
func (d gateDecoder) Decode(string) (string, error) {
	d.once.Do(func() {
		close(d.entered)
		<-d.release
	})
	return "needle", nil
}

func TestStopSuppressesFinal(t *testing.T) {
	r := require.New(t)
	const dirs, filesPerDir = 40, 100
	large := largeTree(t, dirs, filesPerDir)
	small := helloTree(t)
	gate := newGateDecoder()
	tc := newTestCoordinator(t, Config{Decoders: []decode.Decoder{gate}})
	tc.setOptions(func(o *options.Options) {
		o.Threads = 1
		o.Content.Extended = true
	})

	stopped := tc.Search(Request{RootDir: large, NamePattern: "txt", ContentPattern: "needle"})
	select {
	case <-gate.entered:
	case <-time.After(eventTimeout):
		r.FailNow("search never reached the first file")
	}
	tc.Stop()
	close(gate.release)
	seen := tc.collectFor(500 * time.Millisecond)

	for _, ev := range seen {
		r.Equal(stopped, ev.Generation)
		r.NotEqual(EventFinal, ev.Kind, "stopped search must not finish")
	}
	// Only the file being scanned when Stop was called may still arrive.
	r.LessOrEqual(len(ofKind(seen, EventInterim)), 1)
	r.Less(tc.Scanned(), int64(dirs*filesPerDir))

	next := tc.Search(Request{RootDir: small, NamePattern: `\.log$`})
	final, _ := tc.untilFinal(t, next)
	r.Len(final.Entries, 1)
}

func TestScannedCountsCurrentGenerationOnly(t *testing.T) {
	r := require.New(t)
	large := largeTree(t, 20, 100)
	small := helloTree(t)
	tc := newTestCoordinator(t, Config{})

	tc.Search(Request{RootDir: large, ContentPattern: "needle"})
	gen := tc.Search(Request{RootDir: small, ContentPattern: "hello"})
	final, _ := tc.untilFinal(t, gen)
	r.Len(final.Entries, 2)

	// Workers of the first search may still be running; they count
	// elsewhere.
	r.EqualValues(2, tc.Scanned())
	time.Sleep(50 * time.Millisecond)
	r.EqualValues(2, tc.Scanned())
}

func TestSupersededGenerationIsFiltered(t *testing.T) {
	r := require.New(t)
	large := largeTree(t, 40, 100)
	small := helloTree(t)
	tc := newTestCoordinator(t, Config{})

	first := tc.Search(Request{RootDir: large, NamePattern: "txt"})
	second := tc.Search(Request{RootDir: small, NamePattern: `\.log$`})
	r.Greater(second, first)

	_, seen := tc.untilFinal(t, second)
	seen = append(seen, tc.collectFor(300*time.Millisecond)...)

	sawSecond := false
	for _, ev := range seen {
		if ev.Kind == EventFinal {
			r.Equal(second, ev.Generation)
		}
		if ev.Generation == second {
			sawSecond = true
			continue
		}
		r.False(sawSecond, "event of generation %d after generation %d started", ev.Generation, second)
	}
}

func TestSortByName(t *testing.T) {
	r := require.New(t)
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"z/a.txt": "",
		"a/c.txt": "",
		"m/b.txt": "",
	})
	tc := newTestCoordinator(t, Config{})

	tc.SetSort(options.SortName)
	gen := tc.Search(Request{RootDir: root, NamePattern: `\.txt$`})
	final, _ := tc.untilFinal(t, gen)
	r.Equal([]string{"a.txt", "b.txt", "c.txt"}, baseNames(final.Entries))

	tc.SetSort(options.SortPath)
	gen = tc.Search(Request{RootDir: root, NamePattern: `\.txt$`})
	final, _ = tc.untilFinal(t, gen)
	r.Equal([]string{"c.txt", "b.txt", "a.txt"}, baseNames(final.Entries))
}

func TestFileTypeFilter(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"hello.txt":         "hi",
		"hello_dir/x.other": "",
	})
	tc := newTestCoordinator(t, Config{})

	for types, want := range map[options.FileTypes][]string{
		options.FileTypesFiles:       {"hello.txt"},
		options.FileTypesDirectories: {"hello_dir"},
		options.FileTypesAll:         {"hello.txt", "hello_dir"},
	} {
		tc.setOptions(func(o *options.Options) {
			o.Name.FileTypes = types
			o.Sort = options.SortName
		})
		gen := tc.Search(Request{RootDir: root, NamePattern: "hello"})
		final, _ := tc.untilFinal(t, gen)
		require.Equal(t, want, baseNames(final.Entries), "types %s", types)
	}

	tc.setOptions(func(o *options.Options) { o.Name.FileTypes = options.FileTypesAll })
	gen := tc.Search(Request{RootDir: root, NamePattern: "hello", ContentPattern: "."})
	final, _ := tc.untilFinal(t, gen)
	require.Equal(t, []string{"hello.txt"}, baseNames(final.Entries), "directories never carry matches")
}

func TestHiddenEntries(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{".hello": "x", "hello": "x"})
	tc := newTestCoordinator(t, Config{})

	gen := tc.Search(Request{RootDir: root, NamePattern: "hello"})
	final, _ := tc.untilFinal(t, gen)
	require.Equal(t, []string{"hello"}, baseNames(final.Entries))

	tc.setOptions(func(o *options.Options) {
		o.Name.HideHidden = false
		o.Sort = options.SortName
	})
	gen = tc.Search(Request{RootDir: root, NamePattern: "hello"})
	final, _ = tc.untilFinal(t, gen)
	require.Equal(t, []string{".hello", "hello"}, baseNames(final.Entries))
}

func TestNameMatchingUsesComposedForm(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"cafe\u0301.txt": ""})
	tc := newTestCoordinator(t, Config{})

	gen := tc.Search(Request{RootDir: root, NamePattern: "caf\u00e9"})
	final, _ := tc.untilFinal(t, gen)

	require.Len(t, final.Entries, 1)
	require.Equal(t, "caf\u00e9.txt", final.Entries[0].Name)
}

func TestInvalidPatternGivesEmptyFinal(t *testing.T) {
	r := require.New(t)
	root := helloTree(t)
	tc := newTestCoordinator(t, Config{})

	for _, req := range []Request{
		{RootDir: root, NamePattern: "("},
		{RootDir: root, ContentPattern: "["},
		{RootDir: root, NamePattern: "a", ContentPattern: "("},
	} {
		gen := tc.Search(req)
		final, seen := tc.untilFinal(t, gen)
		r.Empty(final.Entries)
		r.Empty(ofKind(seen, EventErrors))
	}
}

func TestLiteralContent(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.txt": "price: $5.00\n", "b.txt": "price: 5x00\n"})
	tc := newTestCoordinator(t, Config{})
	tc.setOptions(func(o *options.Options) { o.Content.Literal = true })

	gen := tc.Search(Request{RootDir: root, ContentPattern: "5.00"})
	final, _ := tc.untilFinal(t, gen)
	require.Equal(t, []string{"a.txt"}, baseNames(final.Entries))
}

func TestRawBytesSearchedForEveryExtension(t *testing.T) {
	r := require.New(t)
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"report.pdf": "%PDF-1.4\nhello in a content stream\n",
		"image.png":  "\x00\x01hello\n",
		"notes.txt":  "nothing\n",
	})
	tc := newTestCoordinator(t, Config{})

	gen := tc.Search(Request{RootDir: root, ContentPattern: "hello"})
	final, _ := tc.untilFinal(t, gen)

	r.Len(final.Entries, 1, "NUL bytes end the scan of binaries")
	r.Equal(filepath.Join(root, "report.pdf"), final.Entries[0].Path)
	r.Empty(final.Entries[0].Decoder)
	r.Equal(2, final.Entries[0].Matches[0].LineNumber)
}

func TestExtendedDecoders(t *testing.T) {
	r := require.New(t)
	root := helloTree(t)
	writeFiles(t, root, map[string]string{"doc.fake": "raw bytes"})
	tc := newTestCoordinator(t, Config{Decoders: []decode.Decoder{fakeDecoder{text: "line one\nhello decoded"}}})

	gen := tc.Search(Request{RootDir: root, ContentPattern: "hello"})
	final, _ := tc.untilFinal(t, gen)
	r.Len(final.Entries, 2, "decoders are off by default")

	tc.setOptions(func(o *options.Options) {
		o.Content.Extended = true
		o.Sort = options.SortName
	})
	gen = tc.Search(Request{RootDir: root, ContentPattern: "hello"})
	final, _ = tc.untilFinal(t, gen)
	r.Len(final.Entries, 3)

	var doc FileResult
	for _, e := range final.Entries {
		if e.Decoder != "" {
			doc = e
		}
	}
	r.Equal(filepath.Join(root, "doc.fake")+" (fake)", doc.Path)
	r.Equal("doc.fake", doc.Name)
	r.Equal("fake", doc.Decoder)
	r.Equal([]Match{{LineNumber: 2, Text: "hello decoded", Ranges: []MatchSpan{{Start: 0, End: 5}}}}, doc.Matches)

	gen = tc.Search(Request{RootDir: root, NamePattern: `\.fake$`, ContentPattern: "decoded"})
	final, _ = tc.untilFinal(t, gen)
	r.Len(final.Entries, 1)
	r.Equal(filepath.Join(root, "doc.fake"), final.Entries[0].Path)
	r.Equal("fake", final.Entries[0].Decoder)
}

func TestPanickingTaskStillFinishes(t *testing.T) {
	r := require.New(t)
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.boom": "x"})
	tc := newTestCoordinator(t, Config{Decoders: []decode.Decoder{panicDecoder{}}})
	tc.setOptions(func(o *options.Options) { o.Content.Extended = true })

	gen := tc.Search(Request{RootDir: root, ContentPattern: "x"})
	_, seen := tc.untilFinal(t, gen)

	errs := ofKind(seen, EventErrors)
	r.NotEmpty(errs)
	r.True(strings.HasPrefix(errs[0].Errors[0], "search task panicked"), errs[0].Errors[0])
}

func TestUnreadableFileIsReported(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read everything")
	}
	root := helloTree(t)
	locked := filepath.Join(root, "locked.txt")
	writeFiles(t, root, map[string]string{"locked.txt": "hello"})
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o644) })

	tc := newTestCoordinator(t, Config{})
	gen := tc.Search(Request{RootDir: root, ContentPattern: "hello"})
	final, seen := tc.untilFinal(t, gen)

	require.Len(t, final.Entries, 2)
	errs := ofKind(seen, EventErrors)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Errors[0], "locked.txt")
}

func TestOptionsRoundTrip(t *testing.T) {
	r := require.New(t)
	tc := newTestCoordinator(t, Config{})

	o := options.Default()
	o.Sort = options.SortExtension
	o.Name.CaseSensitive = true
	o.Name.FileTypes = options.FileTypesDirectories
	o.Content.Literal = true
	o.NameHistory = []string{"x", "y"}
	o.Threads = 3

	tc.SetOptions(o)
	r.Equal(o, tc.Options())

	got := tc.Options()
	got.NameHistory[0] = "mutated"
	r.Equal("x", tc.Options().NameHistory[0], "options are returned by value")
}

func TestSearchRecordsHistoryAndSaves(t *testing.T) {
	r := require.New(t)
	root := helloTree(t)
	store := options.NewFileStore(filepath.Join(t.TempDir(), "config.toml"))
	tc := newTestCoordinator(t, Config{Store: store})

	gen := tc.Search(Request{RootDir: root, NamePattern: "a", ContentPattern: "hello"})
	tc.untilFinal(t, gen)
	gen = tc.Search(Request{RootDir: root, NamePattern: "b"})
	tc.untilFinal(t, gen)

	opts := tc.Options()
	r.Equal(root, opts.LastDir)
	r.Equal([]string{"b", "a"}, opts.NameHistory)
	r.Equal([]string{"hello"}, opts.ContentHistory)

	r.NoError(tc.Save())
	loaded, err := store.Load()
	r.NoError(err)
	r.Equal(opts, loaded)
}

func TestValidate(t *testing.T) {
	r := require.New(t)
	root := helloTree(t)
	tc := newTestCoordinator(t, Config{})

	r.ErrorIs(tc.Validate(Request{RootDir: root}), ErrNoPattern)
	r.ErrorIs(tc.Validate(Request{RootDir: filepath.Join(root, "missing"), NamePattern: "a"}), ErrInvalidDir)
	r.ErrorIs(tc.Validate(Request{RootDir: root, NamePattern: "("}), grep.ErrInvalidPattern)
	r.ErrorIs(tc.Validate(Request{RootDir: root, ContentPattern: "("}), grep.ErrInvalidPattern)
	r.NoError(tc.Validate(Request{RootDir: root, ContentPattern: "hello"}))

	tc.setOptions(func(o *options.Options) { o.Content.Literal = true })
	r.NoError(tc.Validate(Request{RootDir: root, ContentPattern: "("}))

	r.True(tc.DirIsValid(root))
	r.True(tc.DirIsValid(filepath.Join(root, "a.txt")))
	r.False(tc.DirIsValid(""))
}

func TestExport(t *testing.T) {
	r := require.New(t)
	var got []string
	tc := newTestCoordinator(t, Config{Exporter: clipboard.Func(func(items []string) error {
		got = items
		return nil
	})})

	entries := []FileResult{newFileResult("/x/a.txt", false), newFileResult("/y/b.log", false)}
	r.NoError(tc.Export(Paths(entries)))
	r.Equal([]string{"/x/a.txt", "/y/b.log"}, got)
	r.NoError(tc.Export(Names(entries)))
	r.Equal([]string{"a.txt", "b.log"}, got)

	failing := newTestCoordinator(t, Config{Exporter: clipboard.Func(func([]string) error {
		return clipboard.ErrUnavailable
	})})
	r.True(errors.Is(failing.Export([]string{"a"}), clipboard.ErrUnavailable))
}

func TestCloseClosesEvents(t *testing.T) {
	events := make(chan Event, 1)
	c := NewCoordinator(events, Config{Exporter: clipboard.Func(func([]string) error { return nil })})
	require.NoError(t, c.SaveAndQuit())

	_, ok := <-events
	require.False(t, ok)
	c.Close()
}
