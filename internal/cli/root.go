// Package cli implements the rfind command line.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kk-code-lab/rfind/internal/options"
	"github.com/kk-code-lab/rfind/internal/rlog"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

// LogLevelEnv sets the log level when --log-level is not given.
const LogLevelEnv = "RFIND_LOG_LEVEL"

// ErrInterrupted is returned when the search was stopped by a signal.
var ErrInterrupted = errors.New("interrupted")

type flags struct {
	name        string
	content     string
	nameCase    bool
	contentCase bool
	literal     bool
	types       string
	hidden      bool
	noIgnore    bool
	follow      bool
	sameFS      bool
	extended    bool
	sort        string
	threads     int
	copyMode    string
	save        bool
	history     bool
	logLevel    string
	metricsAddr string
	noColor     bool
}

func NewRootCommand() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "rfind [flags] [dir]",
		Short: "Search file names and file contents",
		Long: `rfind walks a directory tree and reports entries whose name matches a
regular expression, files whose content matches one, or both.

Results are streamed as they are found and printed sorted at the end.
Without a directory the last searched one is used.

Examples:
  rfind -n '\.go$' ./src
  rfind -c TODO --type files
  rfind -n '\.md$' -c 'draft' --sort name --copy paths`,
		Args:          cobra.MaximumNArgs(1),
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f, args)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.name, "name", "n", "", "regular expression matched against base names")
	fs.StringVarP(&f.content, "content", "c", "", "regular expression matched against file lines")
	fs.BoolVar(&f.nameCase, "name-case", false, "match names case-sensitively")
	fs.BoolVar(&f.contentCase, "content-case", false, "match content case-sensitively")
	fs.BoolVar(&f.literal, "literal", false, "treat the content pattern as plain text")
	fs.StringVar(&f.types, "type", "", "entry types to report: files, dirs or all")
	fs.BoolVar(&f.hidden, "hidden", false, "include dotfiles")
	fs.BoolVar(&f.noIgnore, "no-ignore", false, "don't honour .gitignore and similar files")
	fs.BoolVar(&f.follow, "follow", false, "follow symbolic links")
	fs.BoolVar(&f.sameFS, "same-fs", false, "don't cross filesystem boundaries")
	fs.BoolVar(&f.extended, "extended", false, "also search PDF and Office documents")
	fs.StringVar(&f.sort, "sort", "", "sort results by none, path, name or extension")
	fs.IntVar(&f.threads, "threads", 0, "directory walker threads, 0 for one per CPU")
	fs.StringVar(&f.copyMode, "copy", "", "copy result paths or names to the clipboard")
	fs.BoolVar(&f.save, "save", false, "persist the effective options and history")
	fs.BoolVar(&f.history, "history", false, "print the pattern history and exit")
	fs.StringVar(&f.logLevel, "log-level", "warn", "debug, info, warn or error")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while searching")
	fs.BoolVar(&f.noColor, "no-color", false, "disable colored output")

	return cmd
}

func setupLogging(fs *pflag.FlagSet, f *flags) error {
	levelText := f.logLevel
	if env := os.Getenv(LogLevelEnv); env != "" && !fs.Changed("log-level") {
		levelText = env
	}
	level, err := rlog.ParseLevel(levelText)
	if err != nil {
		return err
	}
	rlog.SetLevel(level)

	if f.noColor {
		color.NoColor = true
		rlog.DisableColor()
	}
	return nil
}

// applyFlags overrides opts with every flag given on the command line.
func applyFlags(fs *pflag.FlagSet, f *flags, opts *options.Options) error {
	if fs.Changed("name-case") {
		opts.Name.CaseSensitive = f.nameCase
	}
	if fs.Changed("content-case") {
		opts.Content.CaseSensitive = f.contentCase
	}
	if fs.Changed("literal") {
		opts.Content.Literal = f.literal
	}
	if fs.Changed("extended") {
		opts.Content.Extended = f.extended
	}
	if fs.Changed("hidden") {
		opts.Name.HideHidden = !f.hidden
	}
	if fs.Changed("no-ignore") {
		opts.Name.RespectIgnore = !f.noIgnore
	}
	if fs.Changed("follow") {
		opts.Name.FollowLinks = f.follow
	}
	if fs.Changed("same-fs") {
		opts.Name.SameFilesystem = f.sameFS
	}
	if fs.Changed("threads") {
		opts.Threads = f.threads
	}
	if fs.Changed("type") {
		types := f.types
		if types == "dirs" {
			types = string(options.FileTypesDirectories)
		}
		if err := opts.Name.FileTypes.UnmarshalText([]byte(types)); err != nil {
			return fmt.Errorf("invalid --type %q: %w", f.types, err)
		}
	}
	if fs.Changed("sort") {
		if err := opts.Sort.UnmarshalText([]byte(f.sort)); err != nil {
			return fmt.Errorf("invalid --sort %q: %w", f.sort, err)
		}
	}
	return opts.Validate()
}
