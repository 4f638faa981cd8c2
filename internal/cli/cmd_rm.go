package cli

import (
	"context"
	"fmt"

	"github.com/bitlogdb/bitlog/internal/bitlog"

	flag "github.com/spf13/pflag"
)

// RmCmd returns the `rm <key>` command. Removing a missing key prints a
// diagnostic and exits non-zero, unlike a `get` miss.
func RmCmd(engine *bitlog.Engine) *Command {
	return &Command{
		Flags: flag.NewFlagSet("rm", flag.ContinueOnError),
		Usage: "rm <key>",
		Short: "Remove a key",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: rm <key>", errWrongArgCount)
			}

			return engine.Remove(args[0])
		},
	}
}
