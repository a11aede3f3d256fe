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

package render

import (
	"io"
	"os"
	"strconv"
	"strings"

	pt "github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"

	"gitlab.com/davidxarnold/consul-bootstrap/pkg/core"
)

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Table prints the reconciled metadata with the source of every value.
// pretty selects the colored, boxed style.
func Table(w io.Writer, md *core.Metadata, pretty bool) {
	t := pt.NewWriter()
	if pretty {
		t.SetStyle(pt.StyleColoredBright)
	} else {
		t.Style().Options.DrawBorder = false
		t.Style().Options.SeparateColumns = false
		t.Style().Options.SeparateFooter = false
		t.Style().Options.SeparateHeader = false
		t.Style().Options.SeparateRows = false
	}
	t.SetOutputMirror(w)
	t.AppendHeader(pt.Row{"Field", "Value", "Source"})

	for _, f := range md.Fields() {
		t.AppendRow(pt.Row{f[0], f[1], sourceOf(md, f[0], f[1])})
	}
	if md.BootstrapExpect > 0 {
		t.AppendRow(pt.Row{core.KeyBootstrapExpect, strconv.Itoa(md.BootstrapExpect), md.Sources[core.KeyBootstrapExpect]})
	}
	if len(md.RetryJoin) > 0 {
		t.AppendRow(pt.Row{core.KeyRetryJoin, strings.Join(md.RetryJoin, ", "), md.Sources[core.KeyRetryJoin]})
	}

	provider := md.Provider
	if provider == "" {
		provider = "none"
	}
	t.AppendFooter(pt.Row{"Provider", provider, ""})

	t.Render()
}

func sourceOf(md *core.Metadata, key, value string) string {
	if value == "" {
		return "-"
	}
	return string(md.Sources[key])
}
