//go:build linux

package netutil

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// SetHostname sets the kernel hostname. It requires CAP_SYS_ADMIN.
func SetHostname(name string) error {
	if err := unix.Sethostname([]byte(name)); err != nil {
		return fmt.Errorf("sethostname %q: %w", name, err)
	}
	return nil
}
