package core

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gitlab.com/davidxarnold/consul-bootstrap/pkg/cloud"
	"gitlab.com/davidxarnold/consul-bootstrap/pkg/override"
)

// LocalResolver supplies facts about the local host. It is only consulted
// for fields no other source provided.
type LocalResolver interface {
	ResolveIP() string
	ResolveHostname() string
}

// Inputs are the collected sources Reconcile merges.
type Inputs struct {
	// Detected reports whether the host runs in a cloud environment.
	// Collected is ignored when it is false.
	Detected  bool
	Collected *cloud.Collected
	Local     LocalResolver
	Overrides override.Map
}

// Options controls side effects of Reconcile.
type Options struct {
	// DryRun suppresses SetHostname.
	DryRun bool
	// SetHostname applies a synthesized hostname to the OS.
	SetHostname func(name string) error
}

// overrideKeys are applied in this order; region_short comes after its
// datacenter alias so the explicit key wins.
var overrideKeys = []string{
	KeyPrivateIP,
	KeyRegion,
	KeyDatacenter,
	KeyRegionShort,
	KeyHostname,
	KeyCluster,
	KeyRole,
	KeyConsul,
	KeyInstanceType,
	KeyLegacyHostname,
}

// Reconcile merges the inputs into a Metadata record. Overrides beat cloud
// metadata, which beats local facts; local facts only fill gaps. When the
// override file sets synthesize_hostname the hostname is rebuilt and, unless
// DryRun is set, applied to the OS. Failing to apply it is recorded as a
// warning and does not fail the call.
func Reconcile(in Inputs, opts Options) (*Metadata, error) {
	md := &Metadata{Sources: map[string]Source{}}

	if in.Detected && in.Collected != nil {
		applyCollected(md, in.Collected)
	}

	applyOverrides(md, in.Overrides)

	if in.Local != nil {
		if md.PrivateIP == "" {
			md.set(KeyPrivateIP, in.Local.ResolveIP(), SourceLocal)
		}
		if md.Hostname == "" {
			md.set(KeyHostname, in.Local.ResolveHostname(), SourceLocal)
		}
	}

	if md.RegionShort == "" && md.Region != "" {
		md.set(KeyRegionShort, cloud.RegionShort(md.Region), SourceDerived)
	}

	if in.Overrides.Bool(KeySynthesizeHostname) {
		if err := synthesize(md, opts); err != nil {
			return nil, err
		}
	}

	log.WithFields(log.Fields{
		"hostname":   md.Hostname,
		"private_ip": md.PrivateIP,
		"datacenter": md.RegionShort,
		"cluster":    md.Cluster,
	}).Debug("reconciled metadata")

	return md, nil
}

func applyCollected(md *Metadata, c *cloud.Collected) {
	md.Provider = c.Provider
	md.set(KeyPrivateIP, c.PrivateIP, SourceCloud)
	md.set(KeyRegion, c.Region, SourceCloud)
	md.set(KeyRegionShort, c.RegionShort, SourceCloud)
	md.set(KeyHostname, c.Hostname, SourceCloud)
	md.set(KeyCluster, c.Cluster, SourceCloud)
	md.set(KeyRole, c.Role, SourceCloud)
	md.set(KeyConsul, c.Consul, SourceCloud)
	md.set(KeyInstanceType, c.InstanceType, SourceCloud)
	md.set(KeyLegacyHostname, c.LegacyHostname, SourceCloud)
}

func applyOverrides(md *Metadata, o override.Map) {
	for _, key := range overrideKeys {
		if v, ok := o.String(key); ok {
			md.assign(key, v, SourceOverride)
		}
	}

	// A region override without an explicit datacenter must not keep the
	// datacenter derived from the cloud region.
	if o.Has(KeyRegion) && !o.Has(KeyRegionShort) && !o.Has(KeyDatacenter) && md.Region != "" {
		md.set(KeyRegionShort, cloud.RegionShort(md.Region), SourceDerived)
	}

	if n, ok := o.Int(KeyBootstrapExpect); ok {
		md.BootstrapExpect = n
		md.Sources[KeyBootstrapExpect] = SourceOverride
	}
	if rj, ok := o.StringSlice(KeyRetryJoin); ok {
		md.RetryJoin = rj
		md.Sources[KeyRetryJoin] = SourceOverride
	}
}

func synthesize(md *Metadata, opts Options) error {
	name, err := SynthesizeHostname(md)
	if err != nil {
		return err
	}
	md.set(KeyHostname, name, SourceSynthesized)

	if opts.DryRun {
		log.Infof("dry run, not setting hostname to %s", name)
		return nil
	}
	if opts.SetHostname == nil {
		log.Infof("no hostname setter configured, not setting hostname to %s", name)
		return nil
	}

	if err := opts.SetHostname(name); err != nil {
		msg := fmt.Sprintf("unable to set hostname to %s: %v", name, err)
		log.Warn(msg)
		md.Warnings = append(md.Warnings, msg)
		return nil
	}

	log.Infof("hostname set to %s", name)
	return nil
}
