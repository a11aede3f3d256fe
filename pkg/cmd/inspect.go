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
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gitlab.com/davidxarnold/consul-bootstrap/pkg/render"
)

// NewInspectCmd provides the inspect subcommand. It shows the reconciled
// metadata and where every value came from, without writing a config or
// touching the hostname.
func NewInspectCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the reconciled metadata and the source of every value.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromViper()
			cfg.DryRun = true
			env := newEnv(cmd, cfg)

			md, err := Resolve(cmd.Context(), cfg, env)
			if err != nil {
				return err
			}

			format := strings.ToLower(viper.GetString("output"))
			switch format {
			case "json":
				return render.Write(env.Stdout, md)
			case "pretty":
				render.Table(env.Stdout, md, true)
			case "txt", "":
				render.Table(env.Stdout, md, render.IsTerminal(env.Stdout))
			default:
				return fmt.Errorf("unknown output format %q", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(
		&output, "output", "o", "txt",
		"-o, --output='': Output format. One of: txt|pretty|json")
	_ = viper.BindPFlag("output", cmd.Flags().Lookup("output"))

	return cmd
}
