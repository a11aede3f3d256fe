//go:build !linux

package netutil

import (
	"fmt"
	"runtime"
)

// SetHostname is only supported on linux.
func SetHostname(name string) error {
	return fmt.Errorf("sethostname %q: not supported on %s", name, runtime.GOOS)
}
