package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// setupLogging installs a tint handler on w at the given level. Color is
// used only when w is a terminal.
func (cli *CLI) setupLogging(w io.Writer, level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	cli.level.Set(lvl)

	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
		w = colorable.NewColorable(f)
	}
	cli.logger = slog.New(tint.NewHandler(w, &tint.Options{
		Level:   cli.level,
		NoColor: noColor,
	}))
	return nil
}
