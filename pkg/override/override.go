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

// Package override loads the administrator supplied override file. A missing
// file is the common case and yields an empty Map.
package override

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gitlab.com/davidxarnold/consul-bootstrap/pkg/util"
)

// DefaultPath is where the override file is looked up when no path is given.
const DefaultPath = "/etc/consul-bootstrap/override.json"

// ErrOverrideCorrupt is returned when the override file exists but cannot be
// read or parsed.
var ErrOverrideCorrupt = errors.New("override file corrupt")

// formats lists the extensions parsed by their own codec; anything else is read as JSON.
var formats = []string{"json", "yaml", "yml", "toml"}

// Map holds override values keyed by lower-cased, underscore separated names.
type Map map[string]any

// Load reads the override file at path. JSON is the canonical format; YAML
// and TOML are accepted based on the file extension.
func Load(path string) (Map, error) {
	if path == "" {
		return Map{}, nil
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			log.Debugf("no override file at %s", path)
			return Map{}, nil
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrOverrideCorrupt, path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if !slices.Contains(formats, ext) {
		ext = "json"
	}
	v.SetConfigType(ext)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOverrideCorrupt, path, err)
	}

	m := Map(util.NormalizeKeys(v.AllSettings(), "-", "_"))
	log.WithFields(log.Fields{
		"path": path,
		"keys": len(m),
	}).Info("loaded override file")

	return m, nil
}

// Has reports whether key is set.
func (m Map) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// String returns the value of key as a string and whether it was set.
func (m Map) String(key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		log.Warnf("override %q is not a string: %v", key, err)
		return "", false
	}
	return s, true
}

// Bool returns the value of key as a bool. Strings such as "true", "1" or
// "yes" are accepted.
func (m Map) Bool(key string) bool {
	v, ok := m[key]
	if !ok {
		return false
	}
	if s, isString := v.(string); isString && strings.EqualFold(strings.TrimSpace(s), "yes") {
		return true
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		log.Warnf("override %q is not a boolean: %v", key, err)
		return false
	}
	return b
}

// Int returns the value of key as an int and whether it was set.
func (m Map) Int(key string) (int, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		log.Warnf("override %q is not an integer: %v", key, err)
		return 0, false
	}
	return i, true
}

// StringSlice returns the value of key as a list of strings and whether it was set.
func (m Map) StringSlice(key string) ([]string, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	s, err := cast.ToStringSliceE(v)
	if err != nil {
		log.Warnf("override %q is not a list: %v", key, err)
		return nil, false
	}
	return s, true
}
