/*
Copyright 2025 David Arnold
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at
    http://www.apache.org/licenses/LICENSE-2.0
Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package netutil resolves facts about the local host: the private address
// used for outbound traffic and the OS hostname.
package netutil

import (
	"net"
	"os"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultProbeAddr is only used to pick a route; nothing is sent to it.
	DefaultProbeAddr = "8.8.8.8:80"
	// Loopback is returned when no outbound address can be determined.
	Loopback = "127.0.0.1"
)

// Resolver resolves the local address and hostname on a best-effort basis.
type Resolver struct {
	ProbeAddr string
	Dial      func(network, address string) (net.Conn, error)
	Hostname  func() (string, error)
}

// NewResolver returns a Resolver probing addr, or DefaultProbeAddr when empty.
func NewResolver(addr string) *Resolver {
	if addr == "" {
		addr = DefaultProbeAddr
	}
	return &Resolver{
		ProbeAddr: addr,
		Dial:      net.Dial,
		Hostname:  os.Hostname,
	}
}

// ResolveIP returns the local address the kernel would use to reach the
// probe address. A UDP "connection" only selects a route, so no packet is
// sent. Any failure yields Loopback.
func (r *Resolver) ResolveIP() string {
	conn, err := r.Dial("udp", r.ProbeAddr)
	if err != nil {
		log.Debugf("unable to probe route to %s, using %s: %v", r.ProbeAddr, Loopback, err)
		return Loopback
	}
	defer func() {
		_ = conn.Close()
	}()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil || addr.IP.IsUnspecified() {
		return Loopback
	}
	return addr.IP.String()
}

// ResolveHostname returns the hostname reported by the OS, or "" if it
// cannot be read.
func (r *Resolver) ResolveHostname() string {
	h, err := r.Hostname()
	if err != nil {
		log.Debugf("unable to read hostname: %v", err)
		return ""
	}
	return h
}
