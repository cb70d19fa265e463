package config

import (
	"fmt"
	"os"
)

// Exitf reports a fatal startup or tooling failure on stderr and terminates
// the process with a nonzero status. Booking binaries use it where no log
// prefix has been configured yet.
func Exitf(format string, args ...any) {
	fmt.Fprintln(os.Stderr, fmt.Sprintf(format, args...))
	os.Exit(1)
}
