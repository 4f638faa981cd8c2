package cli

import (
	"fmt"
	"io"
)

// IO bundles a command's stdout/stderr writers so commands stay testable
// without touching os.Stdout/os.Stderr directly.
type IO struct {
	out    io.Writer
	errOut io.Writer
}

// NewIO creates an IO instance.
func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

// Println writes to stdout.
func (o *IO) Println(a ...any) {
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout.
func (o *IO) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Out exposes the raw stdout writer for commands (like repl) that need
// direct access rather than the line-buffered helpers above.
func (o *IO) Out() io.Writer {
	return o.out
}
