package config

import (
	"fmt"
	"io"
	"os"
)

// exitFunc and stderr are swapped by tests that cannot fork a subprocess.
var (
	exitFunc           = os.Exit
	stderr   io.Writer = os.Stderr
)

// Exitf writes a formatted error message to stderr and exits with code 1.
// CLI entry points use it for unrecoverable startup failures only; runtime
// errors inside the sync layer are always returned to the caller.
func Exitf(format string, args ...any) {
	fmt.Fprintf(stderr, format+"\n", args...)
	exitFunc(1)
}
