// Package main provides bitlog, a CLI front end for the embeddable
// log-structured key-value store implemented in internal/bitlog.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/bitlogdb/bitlog/internal/cli"
)

func main() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	exitCode := cli.Run(os.Stdin, os.Stdout, os.Stderr, os.Args, os.Environ(), sigCh)

	os.Exit(exitCode)
}
