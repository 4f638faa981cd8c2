package cli

import (
	"context"

	"github.com/bitlogdb/bitlog/internal/bitlog"

	flag "github.com/spf13/pflag"
)

// ReplCmd returns the `repl` command, an interactive shell over engine.
func ReplCmd(engine *bitlog.Engine) *Command {
	return &Command{
		Flags: flag.NewFlagSet("repl", flag.ContinueOnError),
		Usage: "repl",
		Short: "Start an interactive shell",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			return NewREPL(engine, o.Out()).Run()
		},
	}
}
