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

// Package render maps reconciled metadata onto the consul agent config
// documents and writes them out.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gitlab.com/davidxarnold/consul-bootstrap/pkg/cloud"
	"gitlab.com/davidxarnold/consul-bootstrap/pkg/core"
)

// Defaults for the fixed parts of the agent config.
const (
	DefaultDataDir         = "/opt/consul/data"
	DefaultBootstrapExpect = 3
	DefaultJoinTagKey      = "Consul"
)

// ErrFieldMissing is matched by every FieldMissingError.
var ErrFieldMissing = errors.New("required field missing")

// FieldMissingError names a field the config needs but no source provided.
type FieldMissingError struct {
	Field string
}

func (e *FieldMissingError) Error() string {
	return fmt.Sprintf("cannot render config: required field %q is missing", e.Field)
}

// Is makes errors.Is(err, ErrFieldMissing) true.
func (e *FieldMissingError) Is(target error) bool {
	return target == ErrFieldMissing
}

// Options carries the render settings that do not come from metadata.
type Options struct {
	Server          bool
	DataDir         string
	BootstrapExpect int
	// RetryJoin replaces the cloud auto-join entry when set.
	RetryJoin  []string
	JoinTagKey string
}

// NodeMeta is the node_meta block.
type NodeMeta struct {
	Cluster        string `json:"cluster"`
	EC2Type        string `json:"ec2_type"`
	LegacyHostname string `json:"legacy_hostname"`
}

// Base holds the keys shared by client and server configs.
type Base struct {
	Datacenter         string   `json:"datacenter"`
	DataDir            string   `json:"data_dir"`
	EnableScriptChecks bool     `json:"enable_script_checks"`
	NodeName           string   `json:"node_name"`
	NodeMeta           NodeMeta `json:"node_meta"`
	RetryJoin          []string `json:"retry_join"`
}

// ClientConfig is the consul client agent config.
type ClientConfig struct {
	BindAddr string `json:"bind_addr"`
	Base
	Server bool `json:"server"`
}

// ServerConfig is the consul server agent config.
type ServerConfig struct {
	BootstrapExpect int `json:"bootstrap_expect"`
	Base
	Server bool `json:"server"`
	UI     bool `json:"ui"`
}

// Build checks that md carries every field the selected variant needs and
// returns a *ClientConfig or *ServerConfig.
func Build(md *core.Metadata, opts Options) (any, error) {
	opts = withDefaults(md, opts)

	required := [][2]string{
		{core.KeyRegionShort, md.RegionShort},
		{core.KeyHostname, md.Hostname},
		{core.KeyCluster, md.Cluster},
	}
	if len(opts.RetryJoin) == 0 {
		required = append(required, [2]string{core.KeyConsul, md.Consul})
	}
	if !opts.Server {
		required = append(required, [2]string{core.KeyPrivateIP, md.PrivateIP})
	}
	for _, r := range required {
		if r[1] == "" {
			return nil, &FieldMissingError{Field: r[0]}
		}
	}

	base := Base{
		Datacenter:         md.RegionShort,
		DataDir:            opts.DataDir,
		EnableScriptChecks: true,
		NodeName:           md.Hostname,
		NodeMeta: NodeMeta{
			Cluster:        md.Cluster,
			EC2Type:        md.InstanceType,
			LegacyHostname: md.LegacyHostname,
		},
		RetryJoin: retryJoin(md, opts),
	}

	if opts.Server {
		return &ServerConfig{
			BootstrapExpect: opts.BootstrapExpect,
			Base:            base,
			Server:          true,
			UI:              true,
		}, nil
	}
	return &ClientConfig{
		BindAddr: md.PrivateIP,
		Base:     base,
		Server:   false,
	}, nil
}

// withDefaults fills unset options, letting override file values in md win
// over the tool configuration.
func withDefaults(md *core.Metadata, opts Options) Options {
	if opts.DataDir == "" {
		opts.DataDir = DefaultDataDir
	}
	if md.BootstrapExpect > 0 {
		opts.BootstrapExpect = md.BootstrapExpect
	}
	if opts.BootstrapExpect <= 0 {
		opts.BootstrapExpect = DefaultBootstrapExpect
	}
	if len(md.RetryJoin) > 0 {
		opts.RetryJoin = md.RetryJoin
	}
	if opts.JoinTagKey == "" {
		opts.JoinTagKey = DefaultJoinTagKey
	}
	return opts
}

func retryJoin(md *core.Metadata, opts Options) []string {
	if len(opts.RetryJoin) > 0 {
		return opts.RetryJoin
	}
	provider := md.Provider
	if provider == "" || provider == cloud.ProviderNone {
		provider = cloud.ProviderAWS
	}
	return []string{fmt.Sprintf("provider=%s tag_key=%s tag_value=%s", provider, opts.JoinTagKey, md.Consul)}
}

// Write encodes cfg as indented JSON to w.
func Write(w io.Writer, cfg any) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	b = append(b, '\n')
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// WriteFile replaces path with cfg. The document is written to a temporary
// file in the same directory and renamed, so readers never see a partial file.
func WriteFile(path string, cfg any) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = Write(tmp, cfg); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmp.Name(), path, err)
	}
	return nil
}
