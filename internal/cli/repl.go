package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitlogdb/bitlog/internal/bitlog"

	"github.com/peterh/liner"
)

// REPL is an interactive readline-style shell over an open engine,
// following the same liner-based command loop as the teacher's slotcache
// playground CLI.
type REPL struct {
	engine *bitlog.Engine
	out    io.Writer
	liner  *liner.State
}

// NewREPL builds a REPL over engine, writing to out.
func NewREPL(engine *bitlog.Engine, out io.Writer) *REPL {
	return &REPL{engine: engine, out: out}
}

func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".bitlog_history")
}

// Run starts the command loop. It returns when the user exits or stdin is
// closed.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFilePath()); err == nil {
		_, _ = r.liner.ReadHistory(f)
		_ = f.Close()
	}

	fmt.Fprintln(r.out, "bitlog - interactive shell")
	fmt.Fprintln(r.out, "Type 'help' for available commands.")
	fmt.Fprintln(r.out)

	for {
		line, err := r.liner.Prompt("bitlog> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out, "\nBye!")
				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Fprintln(r.out, "Bye!")
			r.saveHistory()
			return nil
		case "help", "?":
			r.printHelp()
		case "set":
			r.cmdSet(args)
		case "get":
			r.cmdGet(args)
		case "rm", "del", "delete":
			r.cmdRm(args)
		case "compact":
			r.cmdCompact()
		case "stats":
			r.cmdStats()
		default:
			fmt.Fprintf(r.out, "unknown command: %s (try 'help')\n", cmd)
		}
	}
}

func (r *REPL) saveHistory() {
	path := historyFilePath()
	if path == "" {
		return
	}

	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer f.Close()

	_, _ = r.liner.WriteHistory(f)
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.out, "Commands:")
	fmt.Fprintln(r.out, "  set <key> <value>   store a value")
	fmt.Fprintln(r.out, "  get <key>           look up a value")
	fmt.Fprintln(r.out, "  rm <key>            remove a key")
	fmt.Fprintln(r.out, "  compact             rewrite the log")
	fmt.Fprintln(r.out, "  stats               show index/accounting stats")
	fmt.Fprintln(r.out, "  exit, quit, q       leave the shell")
}

func (r *REPL) cmdSet(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(r.out, "usage: set <key> <value>")
		return
	}

	if err := r.engine.Set(args[0], args[1]); err != nil {
		fmt.Fprintln(r.out, "error:", err)
		return
	}

	fmt.Fprintln(r.out, "ok")
}

func (r *REPL) cmdGet(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(r.out, "usage: get <key>")
		return
	}

	value, ok, err := r.engine.Get(args[0])
	if err != nil {
		fmt.Fprintln(r.out, "error:", err)
		return
	}
	if !ok {
		fmt.Fprintln(r.out, "(not found)")
		return
	}

	fmt.Fprintln(r.out, value)
}

func (r *REPL) cmdRm(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(r.out, "usage: rm <key>")
		return
	}

	if err := r.engine.Remove(args[0]); err != nil {
		fmt.Fprintln(r.out, "error:", err)
		return
	}

	fmt.Fprintln(r.out, "ok")
}

func (r *REPL) cmdCompact() {
	if err := r.engine.Compact(context.Background()); err != nil {
		fmt.Fprintln(r.out, "error:", err)
		return
	}

	fmt.Fprintln(r.out, "ok")
}

func (r *REPL) cmdStats() {
	s := r.engine.Stats()
	fmt.Fprintf(r.out, "keys=%d total_bytes=%d live_bytes=%d uncompacted=%d\n",
		s.Keys, s.TotalBytes, s.LiveBytes, s.Uncompacted)
}

// completer offers the REPL's own command names as liner completions.
func (r *REPL) completer(line string) []string {
	names := []string{"set", "get", "rm", "compact", "stats", "help", "exit"}

	var out []string
	for _, n := range names {
		if strings.HasPrefix(n, line) {
			out = append(out, n)
		}
	}

	return out
}
