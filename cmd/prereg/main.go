// Command prereg runs the predictive-divergence protocol.
//
// Usage:
//
//	prereg [--verbose] [--log-format json|console] <command>
//	prereg register --agents N --ticks T [--config <yaml>] [--model <id>] [--save-to-db]
//	prereg compare --predictions <path|key> --run-id <uuid> [--output <path.md>] [--save-to-db]
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"prereg/internal/config"
	"prereg/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr, &app{env: config.FromOS()}))
}

// cli runs the command tree and maps any error to a non-zero exit code.
func cli(args []string, stdout, stderr io.Writer, a *app) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		reportError(stderr, err)
		return 1
	}
	return 0
}

func reportError(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	var malformed *domain.MalformedResponseError
	if errors.As(err, &malformed) && malformed.Raw != "" {
		_, _ = fmt.Fprintf(w, "\nRaw response:\n%s\n", malformed.Raw)
	}
}
