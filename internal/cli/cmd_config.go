package cli

import (
	"context"

	"github.com/bitlogdb/bitlog/internal/config"

	flag "github.com/spf13/pflag"
)

// ConfigCmd returns the `config` command, printing the resolved
// configuration and which files contributed to it.
func ConfigCmd(cfg config.Config, sources config.Sources) *Command {
	return &Command{
		Flags: flag.NewFlagSet("config", flag.ContinueOnError),
		Usage: "config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			o.Println("data_dir=" + cfg.DataDir)
			o.Printf("compaction_threshold_bytes=%d\n", cfg.CompactionThresholdB)
			o.Printf("verbose=%v\n", cfg.Verbose)

			o.Println("")
			o.Println("# sources")

			if sources.Global == "" && sources.Project == "" {
				o.Println("(defaults only)")
				return nil
			}

			if sources.Global != "" {
				o.Println("global_config=" + sources.Global)
			}
			if sources.Project != "" {
				o.Println("project_config=" + sources.Project)
			}

			return nil
		},
	}
}
