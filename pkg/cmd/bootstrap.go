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
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gitlab.com/davidxarnold/consul-bootstrap/pkg/cloud"
	"gitlab.com/davidxarnold/consul-bootstrap/pkg/core"
	"gitlab.com/davidxarnold/consul-bootstrap/pkg/netutil"
	"gitlab.com/davidxarnold/consul-bootstrap/pkg/override"
	"gitlab.com/davidxarnold/consul-bootstrap/pkg/render"
	"gitlab.com/davidxarnold/consul-bootstrap/pkg/util"
	v "gitlab.com/davidxarnold/consul-bootstrap/version"
)

const (
	envPrefix        = "CONSUL_BOOTSTRAP"
	systemConfigPath = "/etc/consul-bootstrap"
	defaultTimeout   = 30 * time.Second
)

var cfgFile string

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(systemConfigPath)
		home, err := homedir.Dir()
		if err != nil {
			log.Debugf("unable to find home directory: %v", err)
		} else {
			viper.AddConfigPath(home + "/.consul-bootstrap")
		}
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	log.Debugf("using config file: %s", viper.ConfigFileUsed())
	return nil
}

// configFromViper assembles a Config from flags, environment and config file.
func configFromViper() Config {
	return Config{
		File:            viper.GetString("file"),
		Override:        viper.GetString("override"),
		DryRun:          viper.GetBool("dry-run"),
		Provider:        strings.ToLower(viper.GetString("provider")),
		SysfsRoot:       viper.GetString("sysfs-root"),
		ProbeAddr:       viper.GetString("probe-addr"),
		MetadataTimeout: viper.GetDuration("metadata-timeout"),
		Render: render.Options{
			Server:          viper.GetBool("server"),
			DataDir:         viper.GetString("data-dir"),
			BootstrapExpect: viper.GetInt("bootstrap-expect"),
			RetryJoin:       viper.GetStringSlice("retry-join"),
			JoinTagKey:      viper.GetString("join-tag-key"),
		},
	}
}

// newEnv wires the real collaborators for cfg.
func newEnv(cmd *cobra.Command, cfg Config) Env {
	return Env{
		Detector:    cloud.NewDetector(cfg.SysfsRoot),
		Resolver:    netutil.NewResolver(cfg.ProbeAddr),
		SetHostname: netutil.SetHostname,
		Stdout:      cmd.OutOrStdout(),
	}
}

// NewBootstrapCmd provides a cobra command
func NewBootstrapCmd() *cobra.Command {
	var (
		server   bool
		file     string
		over     string
		dryRun   bool
		provider string
		output   string
		level    string
	)

	cmd := &cobra.Command{
		Use:   "consul-bootstrap",
		Short: "Generate a consul agent config from cloud metadata.",
		Long: "consul-bootstrap merges instance metadata, instance tags, a local override file " +
			"and local network facts into a consul agent configuration. It is meant to run once " +
			"per boot, before the consul agent starts.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(); err != nil {
				return err
			}
			return util.SetupLogger()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromViper()
			return Bootstrap(cmd.Context(), cfg, newEnv(cmd, cfg))
		},
	}

	cmd.Version = v.Version

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default /etc/consul-bootstrap/config.yaml)")
	cmd.PersistentFlags().StringVar(
		&over, "override", override.DefaultPath,
		"Override file, JSON (or YAML/TOML by extension). A missing file is not an error.")
	cmd.PersistentFlags().StringVar(
		&provider, "provider", "",
		fmt.Sprintf("Cloud provider to query: %s|none. Empty auto-detects.", strings.Join(cloud.Providers(), "|")))
	cmd.PersistentFlags().String("sysfs-root", "", "Prefix for the sysfs files used to detect the cloud environment")
	cmd.PersistentFlags().String("probe-addr", netutil.DefaultProbeAddr, "Address used to find the outbound private IP")
	cmd.PersistentFlags().Duration("metadata-timeout", defaultTimeout, "Deadline for cloud metadata queries, 0 disables it")
	cmd.PersistentFlags().StringVar(&output, "log-format", "txt", "Log format. One of: txt|json")
	cmd.PersistentFlags().StringVar(&level, "log-level", "info", "Log level")

	cmd.Flags().BoolVarP(&server, "server", "s", false, "Render a server config instead of a client config")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Write the config to this file instead of stdout")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Never change the OS hostname")

	viper.SetDefault("data-dir", render.DefaultDataDir)
	viper.SetDefault("bootstrap-expect", render.DefaultBootstrapExpect)
	viper.SetDefault("join-tag-key", render.DefaultJoinTagKey)

	_ = viper.BindPFlags(cmd.PersistentFlags())
	_ = viper.BindPFlags(cmd.Flags())

	cmd.AddCommand(NewInspectCmd())

	return cmd
}

// Resolve loads the overrides, queries the cloud when the host runs in one
// and reconciles everything with the local facts.
func Resolve(ctx context.Context, cfg Config, env Env) (*core.Metadata, error) {
	if err := validateProvider(cfg.Provider); err != nil {
		return nil, err
	}

	overrides, err := override.Load(cfg.Override)
	if err != nil {
		return nil, err
	}

	provider, detected := selectProvider(cfg.Provider, env.Detector)

	var collected *cloud.Collected
	if detected {
		collected, err = cloud.Collect(ctx, provider, cloud.CollectOptions{Timeout: cfg.MetadataTimeout})
		if err != nil {
			return nil, err
		}
	} else {
		log.Info("no cloud environment detected, using local facts and overrides only")
	}

	return core.Reconcile(core.Inputs{
		Detected:  detected,
		Collected: collected,
		Local:     env.Resolver,
		Overrides: overrides,
	}, core.Options{
		DryRun:      cfg.DryRun,
		SetHostname: env.SetHostname,
	})
}

// Bootstrap resolves the metadata and writes the consul config. Nothing is
// written unless every step succeeded.
func Bootstrap(ctx context.Context, cfg Config, env Env) error {
	md, err := Resolve(ctx, cfg, env)
	if err != nil {
		return err
	}

	doc, err := render.Build(md, cfg.Render)
	if err != nil {
		return err
	}

	if cfg.File == "" {
		err = render.Write(env.Stdout, doc)
	} else {
		err = render.WriteFile(cfg.File, doc)
	}
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"file":      cfg.File,
		"server":    cfg.Render.Server,
		"node_name": md.Hostname,
		"warnings":  len(md.Warnings),
	}).Info("consul config written")
	return nil
}

func validateProvider(name string) error {
	switch name {
	case "", "auto", cloud.ProviderNone:
		return nil
	}
	known := cloud.Providers()
	if !slices.Contains(known, name) {
		return fmt.Errorf("unknown provider %q, want one of %s|%s", name, strings.Join(known, "|"), cloud.ProviderNone)
	}
	return nil
}

func selectProvider(name string, d Detector) (string, bool) {
	switch name {
	case cloud.ProviderNone:
		return "", false
	case "", "auto":
		if d == nil {
			return "", false
		}
		detected := d.DetectProvider()
		return detected, detected != ""
	default:
		return name, true
	}
}
