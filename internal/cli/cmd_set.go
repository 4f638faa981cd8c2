package cli

import (
	"context"
	"fmt"

	"github.com/bitlogdb/bitlog/internal/bitlog"

	flag "github.com/spf13/pflag"
)

// SetCmd returns the `set <key> <value>` command.
func SetCmd(engine *bitlog.Engine) *Command {
	return &Command{
		Flags: flag.NewFlagSet("set", flag.ContinueOnError),
		Usage: "set <key> <value>",
		Short: "Store a value under a key",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("%w: set <key> <value>", errWrongArgCount)
			}

			return engine.Set(args[0], args[1])
		},
	}
}
