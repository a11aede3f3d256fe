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

package util

import (
	"fmt"
	"os"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// SetupLogger sets configuration for the default logger.
// Logs always go to stderr; stdout is reserved for the generated config.
func SetupLogger() (err error) {
	var (
		lf = strings.ToLower(viper.GetString("log-format"))
		ll = viper.GetString("log-level")
	)

	log.SetOutput(os.Stderr)

	// Set log format
	switch lf {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{
			DisableLevelTruncation: true,
		})
	}

	if ll == "" {
		ll = log.InfoLevel.String()
	}
	level, err := log.ParseLevel(ll)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", ll, err)
	}
	log.SetLevel(level)

	return nil
}

// NormalizeKeys returns a copy of m where every key, at every nesting level,
// has from replaced with to. Maps nested in slices are rewritten too; all
// other values are copied as-is. Keys are visited in sorted order so
// collisions resolve the same way on every run: a rewritten key beats a key
// that already had the target spelling, and among rewritten keys the one
// that sorts first wins.
func NormalizeKeys(m map[string]any, from, to string) map[string]any {
	if m == nil {
		return nil
	}

	out := make(map[string]any, len(m))
	rewritten := make(map[string]bool, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		nk := strings.ReplaceAll(k, from, to)
		changed := nk != k
		if _, exists := out[nk]; exists && (!changed || rewritten[nk]) {
			continue
		}
		out[nk] = normalizeValue(m[k], from, to)
		if changed {
			rewritten[nk] = true
		}
	}
	return out
}

func normalizeValue(v any, from, to string) any {
	switch t := v.(type) {
	case map[string]any:
		return NormalizeKeys(t, from, to)
	case []any:
		s := make([]any, len(t))
		for i := range t {
			s[i] = normalizeValue(t[i], from, to)
		}
		return s
	default:
		return v
	}
}
