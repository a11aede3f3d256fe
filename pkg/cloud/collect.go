package cloud

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gitlab.com/davidxarnold/consul-bootstrap/pkg/util"
)

// ErrMetadataUnavailable is returned when the instance metadata or the
// instance tags could not be fetched. It is always fatal.
var ErrMetadataUnavailable = errors.New("cloud metadata unavailable")

// CollectOptions tunes Collect.
type CollectOptions struct {
	// Timeout bounds the whole provider call. Zero means no deadline.
	Timeout time.Duration
}

// Collect fetches the instance metadata from the named provider, rewrites
// hyphenated keys to underscores and projects the fields the rest of the
// pipeline consumes.
func Collect(ctx context.Context, name string, opts CollectOptions) (*Collected, error) {
	provider := LookupProvider(name)
	if provider == nil {
		return nil, fmt.Errorf("%w: unknown provider %q", ErrMetadataUnavailable, name)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := provider.InstanceMetadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMetadataUnavailable, name, err)
	}

	c := project(name, util.NormalizeKeys(raw, "-", "_"))

	log.WithFields(log.Fields{
		"provider": name,
		"instance": c.InstanceID,
		"region":   c.Region,
		"tags":     len(c.Tags),
		"took":     time.Since(start).Round(time.Millisecond),
	}).Info("collected instance metadata")

	return c, nil
}

// RegionShort strips the separators from a region name, turning
// "us-east-1" into "useast1".
func RegionShort(region string) string {
	return strings.ReplaceAll(region, "-", "")
}

func project(name string, raw map[string]any) *Collected {
	c := &Collected{
		Provider:     name,
		InstanceID:   stringAt(raw, "instance_id"),
		InstanceType: stringAt(raw, "instance_type"),
		PrivateIP:    stringAt(raw, "local_ipv4"),
		Region:       stringAt(raw, "identity", "document", "region"),
		Tags:         map[string]string{},
		Raw:          raw,
	}

	if c.Region != "" {
		c.RegionShort = RegionShort(c.Region)
		raw["region_short"] = c.RegionShort
		if doc, ok := mapAt(raw, "identity", "document"); ok {
			doc["region_short"] = c.RegionShort
		}
	}

	if tags, ok := mapAt(raw, "tags"); ok {
		for k, v := range tags {
			c.Tags[k] = fmt.Sprint(v)
		}
	}

	c.Cluster = c.Tags["cluster"]
	c.Consul = c.Tags["consul"]
	c.Role = c.Tags["role"]
	if n, ok := c.Tags["name"]; ok {
		c.LegacyHostname = n
		c.Hostname = strings.ReplaceAll(n, "_", "-")
	}

	return c
}

func mapAt(m map[string]any, path ...string) (map[string]any, bool) {
	cur := m
	for _, p := range path {
		next, ok := cur[p].(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func stringAt(m map[string]any, path ...string) string {
	parent, ok := mapAt(m, path[:len(path)-1]...)
	if !ok {
		return ""
	}
	s, _ := parent[path[len(path)-1]].(string)
	return s
}
