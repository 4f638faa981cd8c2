package cli

import (
	"context"

	"github.com/bitlogdb/bitlog/internal/bitlog"

	flag "github.com/spf13/pflag"
)

// CompactCmd returns the `compact` command, an explicit trigger for the
// protocol that otherwise only runs automatically after a write crosses the
// uncompacted-byte threshold.
func CompactCmd(engine *bitlog.Engine) *Command {
	return &Command{
		Flags: flag.NewFlagSet("compact", flag.ContinueOnError),
		Usage: "compact",
		Short: "Rewrite the log to contain only live records",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			before := engine.Stats()

			if err := engine.Compact(ctx); err != nil {
				return err
			}

			after := engine.Stats()
			o.Printf("reclaimed %d bytes (%d -> %d live)\n",
				before.Uncompacted, before.TotalBytes, after.TotalBytes)

			return nil
		},
	}
}
