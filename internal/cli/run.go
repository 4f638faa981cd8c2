package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bitlogdb/bitlog/internal/bitlog"
	"github.com/bitlogdb/bitlog/internal/config"

	flag "github.com/spf13/pflag"
)

// Run is the main entry point. Returns the process exit code. sigCh may be
// nil if signal handling is not needed (e.g. in tests).
func Run(_ io.Reader, out, errOut io.Writer, args []string, env []string, sigCh <-chan os.Signal) int {
	globalFlags := flag.NewFlagSet("bitlog", flag.ContinueOnError)
	globalFlags.SetInterspersed(false)
	globalFlags.Usage = func() {}
	globalFlags.SetOutput(&strings.Builder{})

	flagHelp := globalFlags.BoolP("help", "h", false, "Show help")
	flagCwd := globalFlags.StringP("cwd", "C", "", "Run as if started in `dir`")
	flagConfig := globalFlags.StringP("config", "c", "", "Use specified config `file`")
	flagDataDir := globalFlags.String("data-dir", "", "Override data `directory`")
	flagThreshold := globalFlags.Int64("compaction-threshold", 0, "Override compaction threshold in `bytes`")
	flagVerbose := globalFlags.Bool("verbose", false, "Enable structured logging")

	if err := globalFlags.Parse(args[1:]); err != nil {
		fprintln(errOut, "error:", err)
		printGlobalOptions(errOut)

		return 1
	}

	workDir := *flagCwd
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			fprintln(errOut, "error:", err)
			return 1
		}
		workDir = wd
	}

	cliOverrides := config.Config{
		DataDir:              *flagDataDir,
		CompactionThresholdB: *flagThreshold,
		Verbose:              *flagVerbose,
	}

	cfg, sources, err := config.Load(
		workDir, *flagConfig, cliOverrides,
		globalFlags.Changed("data-dir"),
		globalFlags.Changed("compaction-threshold"),
		globalFlags.Changed("verbose"),
		env,
	)
	if err != nil {
		fprintln(errOut, "error:", err)
		printGlobalOptions(errOut)

		return 1
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if cfg.Verbose {
		level := slog.LevelDebug
		logger = slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	}

	commandAndArgs := globalFlags.Args()

	// `config` never needs the engine open, so it's dispatched before we
	// pay the cost (and lock contention) of opening the store.
	if len(commandAndArgs) > 0 && commandAndArgs[0] == "config" {
		cmd := ConfigCmd(cfg, sources)
		return cmd.Run(context.Background(), NewIO(out, errOut), commandAndArgs[1:])
	}

	commandNames := []string{"set", "get", "rm", "compact", "stats", "repl", "config"}

	if *flagHelp || (len(commandAndArgs) == 0 && globalFlags.NFlag() == 0) {
		printUsage(out, commandNames)
		return 0
	}

	if len(commandAndArgs) == 0 {
		fprintln(errOut, "error: no command provided")
		printUsage(errOut, commandNames)

		return 1
	}

	engine, err := bitlog.Open(cfg.DataDir,
		bitlog.WithCompactionThreshold(cfg.CompactionThresholdB),
		bitlog.WithLogger(logger),
	)
	if err != nil {
		fprintln(errOut, "error:", err)
		return 1
	}
	defer engine.Close()

	commands := allCommands(engine)

	commandMap := make(map[string]*Command, len(commands))
	for _, cmd := range commands {
		commandMap[cmd.Name()] = cmd
	}

	cmdName := commandAndArgs[0]

	cmd, ok := commandMap[cmdName]
	if !ok {
		fprintln(errOut, "error: unknown command:", cmdName)
		printUsage(errOut, commandNames)

		return 1
	}

	cmdIO := NewIO(out, errOut)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan int, 1)

	go func() {
		done <- cmd.Run(ctx, cmdIO, commandAndArgs[1:])
	}()

	select {
	case exitCode := <-done:
		return exitCode
	case <-sigCh:
		fprintln(errOut, "shutting down with 5s timeout...")
		cancel()
	}

	select {
	case <-done:
		fprintln(errOut, "graceful shutdown ok (130)")
		return 130
	case <-time.After(5 * time.Second):
		fprintln(errOut, "graceful shutdown timed out, forced exit (130)")
		return 130
	case <-sigCh:
		fprintln(errOut, "graceful shutdown interrupted, forced exit (130)")
		return 130
	}
}

// allCommands returns all commands that operate on an open engine, in
// display order. The `config` command is dispatched separately in Run since
// it never needs the engine.
func allCommands(engine *bitlog.Engine) []*Command {
	return []*Command{
		SetCmd(engine),
		GetCmd(engine),
		RmCmd(engine),
		CompactCmd(engine),
		StatsCmd(engine),
		ReplCmd(engine),
	}
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

const globalOptionsHelp = `  -h, --help                     Show help
  -C, --cwd <dir>                Run as if started in <dir>
  -c, --config <file>            Use specified config file
  --data-dir <dir>                Override data directory
  --compaction-threshold <bytes>  Override compaction threshold
  --verbose                       Enable structured logging`

func printGlobalOptions(w io.Writer) {
	fprintln(w, "Usage: bitlog [flags] <command> [args]")
	fprintln(w)
	fprintln(w, "Global flags:")
	fprintln(w, globalOptionsHelp)
	fprintln(w)
	fprintln(w, "Run 'bitlog --help' for a list of commands.")
}

func printUsage(w io.Writer, commandNames []string) {
	fprintln(w, "bitlog - an embeddable log-structured key-value store")
	fprintln(w)
	fprintln(w, "Usage: bitlog [flags] <command> [args]")
	fprintln(w)
	fprintln(w, "Flags:")
	fprintln(w, globalOptionsHelp)
	fprintln(w)
	fprintln(w, "Commands:")

	for _, name := range commandNames {
		fprintln(w, "  "+name)
	}
}
