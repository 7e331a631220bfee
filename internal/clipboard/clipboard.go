// Package clipboard delivers lists of strings to the system clipboard.
package clipboard

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// ErrUnavailable is returned when no clipboard command could be found.
var ErrUnavailable = errors.New("no clipboard command available")

// Exporter accepts paths or names for an external sink.
type Exporter interface {
	Export(items []string) error
}

// Func adapts a function to Exporter.
type Func func(items []string) error

func (f Func) Export(items []string) error { return f(items) }

// Command pipes the newline-joined items into an external program.
type Command struct {
	args []string
}

func NewCommand(args ...string) *Command {
	return &Command{args: args}
}

func (c *Command) Args() []string {
	return c.args
}

func (c *Command) Export(items []string) error {
	if len(c.args) == 0 {
		return ErrUnavailable
	}

	var stderr bytes.Buffer
	cmd := exec.Command(c.args[0], c.args[1:]...)
	cmd.Stdin = strings.NewReader(Join(items))
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", c.args[0], err, msg)
		}
		return fmt.Errorf("%s: %w", c.args[0], err)
	}
	return nil
}

// Join is the clipboard text for items: one per line.
func Join(items []string) string {
	return strings.Join(items, "\n")
}

// System returns an exporter for the platform clipboard. When no command is
// found the exporter fails with ErrUnavailable.
func System() Exporter {
	args, ok := detect(runtime.GOOS, exec.LookPath)
	if !ok {
		return Func(func([]string) error { return ErrUnavailable })
	}
	return NewCommand(args...)
}

func detect(goos string, lookPath func(string) (string, error)) ([]string, bool) {
	trySingle := func(candidates ...string) ([]string, bool) {
		for _, candidate := range candidates {
			if path, err := lookPath(candidate); err == nil && path != "" {
				return []string{path}, true
			}
		}
		return nil, false
	}

	if strings.EqualFold(goos, "windows") {
		if cmd, ok := trySingle("clip.exe", "clip"); ok {
			return cmd, true
		}
		for _, ps := range []string{"powershell", "powershell.exe", "pwsh"} {
			if path, err := lookPath(ps); err == nil && path != "" {
				return []string{path, "-NoLogo", "-NoProfile", "-Command", "$input | Set-Clipboard"}, true
			}
		}
	}

	commands := [][]string{
		{"pbcopy"},
		{"wl-copy"},
		{"xclip", "-selection", "clipboard"},
		{"xsel", "--clipboard", "--input"},
	}
	for _, cmd := range commands {
		if resolved, err := lookPath(cmd[0]); err == nil && resolved != "" {
			return append([]string{resolved}, cmd[1:]...), true
		}
	}

	return nil, false
}
