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

package cmd

import (
	"io"
	"time"

	"gitlab.com/davidxarnold/consul-bootstrap/pkg/core"
	"gitlab.com/davidxarnold/consul-bootstrap/pkg/render"
)

// Config is the resolved command configuration.
type Config struct {
	File            string
	Override        string
	DryRun          bool
	Provider        string // "" auto-detects, "none" skips cloud metadata
	SysfsRoot       string
	ProbeAddr       string
	MetadataTimeout time.Duration
	Render          render.Options
}

// Detector reports which cloud, if any, the host runs in.
type Detector interface {
	DetectProvider() string
}

// Env holds the collaborators a run talks to.
type Env struct {
	Detector    Detector
	Resolver    core.LocalResolver
	SetHostname func(name string) error
	Stdout      io.Writer
}
