package cli

import (
	"context"

	"github.com/bitlogdb/bitlog/internal/bitlog"

	flag "github.com/spf13/pflag"
)

// StatsCmd returns the `stats` command, a read-only view of the Index &
// Accounting component.
func StatsCmd(engine *bitlog.Engine) *Command {
	return &Command{
		Flags: flag.NewFlagSet("stats", flag.ContinueOnError),
		Usage: "stats",
		Short: "Show index and accounting statistics",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			s := engine.Stats()
			o.Printf("keys=%d\n", s.Keys)
			o.Printf("total_bytes=%d\n", s.TotalBytes)
			o.Printf("live_bytes=%d\n", s.LiveBytes)
			o.Printf("uncompacted=%d\n", s.Uncompacted)

			return nil
		},
	}
}
