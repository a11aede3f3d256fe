package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrHostnameFormat is matched by every HostnameFormatError.
var ErrHostnameFormat = errors.New("hostname format error")

// HostnameFormatError is returned when the private IP cannot be split into
// four octets.
type HostnameFormatError struct {
	IP     string
	Octets int
}

func (e *HostnameFormatError) Error() string {
	return fmt.Sprintf("cannot synthesize hostname: private ip %q has %d octets, want 4", e.IP, e.Octets)
}

// Is makes errors.Is(err, ErrHostnameFormat) true.
func (e *HostnameFormatError) Is(target error) bool {
	return target == ErrHostnameFormat
}

// SynthesizeHostname builds "<cluster>-<role>-<octet4>" from the metadata.
// Without a cluster "unknown<octet2>" is used, without a role the third octet.
func SynthesizeHostname(md *Metadata) (string, error) {
	octets := strings.Split(md.PrivateIP, ".")
	if len(octets) != 4 {
		return "", &HostnameFormatError{IP: md.PrivateIP, Octets: len(octets)}
	}

	cluster := md.Cluster
	if cluster == "" {
		cluster = "unknown" + octets[1]
	}
	role := md.Role
	if role == "" {
		role = octets[2]
	}

	return fmt.Sprintf("%s-%s-%s", cluster, role, octets[3]), nil
}
