package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kk-code-lab/rfind/internal/options"
	"github.com/kk-code-lab/rfind/internal/rlog"
	"github.com/kk-code-lab/rfind/internal/search"
)

const (
	copyPaths = "paths"
	copyNames = "names"
)

func run(cmd *cobra.Command, f *flags, args []string) error {
	if err := setupLogging(cmd.Flags(), f); err != nil {
		return err
	}
	if f.copyMode != "" && f.copyMode != copyPaths && f.copyMode != copyNames {
		return fmt.Errorf("invalid --copy %q: valid values: [%s %s]", f.copyMode, copyPaths, copyNames)
	}

	storePath, err := options.DefaultPath()
	if err != nil {
		return err
	}

	events := make(chan search.Event, 256)
	coord := search.NewCoordinator(events, search.Config{Store: options.NewFileStore(storePath)})
	defer func() {
		go func() {
			for range events {
			}
		}()
		coord.Close()
	}()

	if f.history {
		printHistory(cmd.OutOrStdout(), coord.Options())
		return nil
	}

	opts := coord.Options()
	if err := applyFlags(cmd.Flags(), f, &opts); err != nil {
		return err
	}
	coord.SetOptions(opts)

	req := search.Request{
		RootDir:        opts.LastDir,
		NamePattern:    f.name,
		ContentPattern: f.content,
	}
	if len(args) > 0 {
		req.RootDir = args[0]
	}
	if req.RootDir == "" {
		req.RootDir = "."
	}
	if err := coord.Validate(req); err != nil {
		return err
	}

	if f.metricsAddr != "" {
		srv := serveMetrics(f.metricsAddr)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	p := newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), outputWidth(), !f.noColor && stdoutIsTerminal())
	p.streaming = opts.Sort == options.SortNone
	p.progress = stderrIsTerminal()

	gen := coord.Search(req)
	final, err := await(events, gen, sigs, coord.Stop, p)
	if err != nil {
		return err
	}
	p.final(final)

	if f.copyMode != "" {
		items := search.Paths(final.Entries)
		if f.copyMode == copyNames {
			items = search.Names(final.Entries)
		}
		if err := coord.Export(items); err != nil {
			return err
		}
		rlog.Infof("copied %d %s", len(items), f.copyMode)
	}

	if f.save {
		if err := coord.Save(); err != nil {
			return err
		}
	}
	return nil
}

// await feeds events of gen to p until its Final arrives. An interrupt
// stops the search and returns ErrInterrupted right away.
func await(events <-chan search.Event, gen uint64, sigs <-chan os.Signal, stop func(), p *printer) (*search.FinalResults, error) {
	for {
		select {
		case <-sigs:
			stop()
			p.clearProgress()
			return nil, ErrInterrupted
		case ev, ok := <-events:
			if !ok {
				return nil, errors.New("search ended without results")
			}
			if ev.Generation != gen {
				continue
			}
			switch ev.Kind {
			case search.EventInterim:
				p.interim(ev.Result)
			case search.EventProgress:
				p.scanned(ev.Scanned)
			case search.EventErrors:
				p.errors(ev.Errors)
			case search.EventFinal:
				return ev.Final, nil
			}
		}
	}
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		rlog.Infof("serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rlog.Errorf("metrics server: %v", err)
		}
	}()
	return srv
}

func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func stderrIsTerminal() bool {
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}

// outputWidth is the terminal width, or zero when stdout is not a terminal.
func outputWidth() int {
	if !stdoutIsTerminal() {
		return 0
	}
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return width
}
