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

// Package core reconciles cloud metadata, overrides and local facts into the
// record the consul config is rendered from. It performs no I/O of its own;
// callers hand it already collected inputs.
package core

// Source names where a reconciled value came from.
type Source string

// Sources of reconciled values, lowest precedence first.
const (
	SourceLocal       Source = "local"
	SourceCloud       Source = "cloud"
	SourceOverride    Source = "override"
	SourceDerived     Source = "derived"
	SourceSynthesized Source = "synthesized"
)

// Field keys. They double as the override file keys.
const (
	KeyPrivateIP       = "private_ip"
	KeyRegion          = "region"
	KeyRegionShort     = "region_short"
	KeyHostname        = "hostname"
	KeyCluster         = "cluster"
	KeyRole            = "role"
	KeyConsul          = "consul"
	KeyInstanceType    = "instance_type"
	KeyLegacyHostname  = "legacy_hostname"
	KeyBootstrapExpect = "bootstrap_expect"
	KeyRetryJoin       = "retry_join"

	// KeyDatacenter is accepted in the override file as an alias of region_short.
	KeyDatacenter = "datacenter"
	// KeySynthesizeHostname asks for the hostname to be rebuilt from cluster,
	// role and private IP.
	KeySynthesizeHostname = "synthesize_hostname"
)

// Metadata is the canonical, reconciled view of the host.
type Metadata struct {
	Provider       string `json:"provider,omitempty"`
	PrivateIP      string `json:"private_ip,omitempty"`
	Region         string `json:"region,omitempty"`
	RegionShort    string `json:"region_short,omitempty"`
	Hostname       string `json:"hostname,omitempty"`
	Cluster        string `json:"cluster,omitempty"`
	Role           string `json:"role,omitempty"`
	Consul         string `json:"consul,omitempty"`
	InstanceType   string `json:"instance_type,omitempty"`
	LegacyHostname string `json:"legacy_hostname,omitempty"`

	// BootstrapExpect and RetryJoin are zero unless the override file sets them.
	BootstrapExpect int      `json:"bootstrap_expect,omitempty"`
	RetryJoin       []string `json:"retry_join,omitempty"`

	Sources  map[string]Source `json:"sources,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

// Fields returns the string fields of m keyed by field key, in a stable order
// suitable for display.
func (m *Metadata) Fields() [][2]string {
	return [][2]string{
		{KeyPrivateIP, m.PrivateIP},
		{KeyRegion, m.Region},
		{KeyRegionShort, m.RegionShort},
		{KeyHostname, m.Hostname},
		{KeyCluster, m.Cluster},
		{KeyRole, m.Role},
		{KeyConsul, m.Consul},
		{KeyInstanceType, m.InstanceType},
		{KeyLegacyHostname, m.LegacyHostname},
	}
}

// stringField returns a pointer to the string field named key, or nil.
func (m *Metadata) stringField(key string) *string {
	switch key {
	case KeyPrivateIP:
		return &m.PrivateIP
	case KeyRegion:
		return &m.Region
	case KeyRegionShort, KeyDatacenter:
		return &m.RegionShort
	case KeyHostname:
		return &m.Hostname
	case KeyCluster:
		return &m.Cluster
	case KeyRole:
		return &m.Role
	case KeyConsul:
		return &m.Consul
	case KeyInstanceType:
		return &m.InstanceType
	case KeyLegacyHostname:
		return &m.LegacyHostname
	}
	return nil
}

// set stores a non-empty value; empty values leave the field untouched.
func (m *Metadata) set(key, value string, src Source) {
	if value == "" {
		return
	}
	m.assign(key, value, src)
}

// assign stores value even when it is empty, clearing an earlier value.
func (m *Metadata) assign(key, value string, src Source) {
	f := m.stringField(key)
	if f == nil {
		return
	}
	*f = value
	if key == KeyDatacenter {
		key = KeyRegionShort
	}
	m.Sources[key] = src
}
