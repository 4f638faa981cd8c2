package cli

import (
	"context"
	"fmt"

	"github.com/bitlogdb/bitlog/internal/bitlog"

	flag "github.com/spf13/pflag"
)

// GetCmd returns the `get <key>` command.
//
// A missing key is not an error: nothing is printed to stdout and the
// command exits 0, the shell-friendly "absent key" convention documented
// for this CLI.
func GetCmd(engine *bitlog.Engine) *Command {
	return &Command{
		Flags: flag.NewFlagSet("get", flag.ContinueOnError),
		Usage: "get <key>",
		Short: "Look up a value by key",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: get <key>", errWrongArgCount)
			}

			value, ok, err := engine.Get(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}

			o.Println(value)

			return nil
		},
	}
}
