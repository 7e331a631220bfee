// Package rlog is a small leveled logger writing to stderr.
package rlog

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel accepts debug, info, warn (or warning) and error.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

const flags = log.Ltime | log.Lmsgprefix

var output io.Writer = os.Stderr

var (
	debug = log.New(io.Discard, prefix("[DBG] ", color.FgHiBlack), flags)
	info  = log.New(output, prefix("[INF] ", color.FgCyan), flags)
	warn  = log.New(output, prefix("[WRN] ", color.FgYellow), flags)
	err   = log.New(output, prefix("[ERR] ", color.FgRed), flags)

	mu sync.Mutex
)

func prefix(p string, attr color.Attribute) string {
	if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return p
	}
	return color.New(attr).Sprint(p)
}

// SetLevel discards every logger below level.
func SetLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()

	for l, logger := range map[Level]*log.Logger{
		LevelDebug: debug,
		LevelInfo:  info,
		LevelWarn:  warn,
		LevelError: err,
	} {
		if l < level {
			logger.SetOutput(io.Discard)
		} else {
			logger.SetOutput(output)
		}
	}
}

// DisableColor strips the colored prefixes, used for --no-color.
func DisableColor() {
	mu.Lock()
	defer mu.Unlock()

	debug.SetPrefix("[DBG] ")
	info.SetPrefix("[INF] ")
	warn.SetPrefix("[WRN] ")
	err.SetPrefix("[ERR] ")
}

func Debug(v ...any)                 { debug.Println(v...) }
func Debugf(format string, v ...any) { debug.Printf(format, v...) }

func Info(v ...any)                 { info.Println(v...) }
func Infof(format string, v ...any) { info.Printf(format, v...) }

func Warn(v ...any)                 { warn.Println(v...) }
func Warnf(format string, v ...any) { warn.Printf(format, v...) }

func Error(v ...any)                 { err.Println(v...) }
func Errorf(format string, v ...any) { err.Printf(format, v...) }
