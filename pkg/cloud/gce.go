package cloud

import (
	"context"
	"fmt"
	"strings"

	compute "cloud.google.com/go/compute/apiv1"
	computepb "cloud.google.com/go/compute/apiv1/computepb"
	"cloud.google.com/go/compute/metadata"
	log "github.com/sirupsen/logrus"
)

// gceMetadataAPI is the subset of the metadata server client used by gceProvider.
type gceMetadataAPI interface {
	ProjectIDWithContext(ctx context.Context) (string, error)
	ZoneWithContext(ctx context.Context) (string, error)
	InstanceNameWithContext(ctx context.Context) (string, error)
	InstanceIDWithContext(ctx context.Context) (string, error)
	InternalIPWithContext(ctx context.Context) (string, error)
	HostnameWithContext(ctx context.Context) (string, error)
	GetWithContext(ctx context.Context, suffix string) (string, error)
}

// gceProvider implements Provider for GCE instances. Labels play the role
// of EC2 tags.
type gceProvider struct {
	md     gceMetadataAPI
	labels func(ctx context.Context, project, zone, instance string) (map[string]string, error)
}

func newGCEProvider() Provider {
	return &gceProvider{
		md:     metadata.NewClient(nil),
		labels: instanceLabels,
	}
}

// InstanceMetadata fetches the attributes and labels of the running GCE instance.
func (p *gceProvider) InstanceMetadata(ctx context.Context) (map[string]any, error) {
	project, err := p.md.ProjectIDWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get project id: %w", err)
	}
	zone, err := p.md.ZoneWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get zone: %w", err)
	}
	name, err := p.md.InstanceNameWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get instance name: %w", err)
	}
	id, err := p.md.InstanceIDWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get instance id: %w", err)
	}
	ip, err := p.md.InternalIPWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get internal ip: %w", err)
	}
	hostname, err := p.md.HostnameWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get hostname: %w", err)
	}
	machineType, err := p.md.GetWithContext(ctx, "instance/machine-type")
	if err != nil {
		return nil, fmt.Errorf("get machine type: %w", err)
	}

	labels, err := p.labels(ctx, project, zone, name)
	if err != nil {
		return nil, err
	}
	tags := make(map[string]any, len(labels))
	for k, v := range labels {
		tags[strings.ToLower(k)] = v
	}

	region := zoneToRegion(zone)
	return map[string]any{
		"instance-id":    id,
		"instance-name":  name,
		"instance-type":  lastSegment(machineType),
		"local-ipv4":     ip,
		"local-hostname": hostname,
		"placement":      map[string]any{"availability-zone": zone},
		"identity": map[string]any{
			"document": map[string]any{
				"projectId": project,
				"zone":      zone,
				"region":    region,
			},
		},
		"tags": tags,
	}, nil
}

// instanceLabels reads the instance labels through the Compute API.
func instanceLabels(ctx context.Context, project, zone, instance string) (map[string]string, error) {
	c, err := compute.NewInstancesRESTClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCE client: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Debugf("failed to close GCE client: %v", err)
		}
	}()

	req := &computepb.GetInstanceRequest{
		Project:  project,
		Zone:     zone,
		Instance: instance,
	}

	inst, err := c.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCE instance %s: %w", instance, err)
	}
	return inst.GetLabels(), nil
}

// zoneToRegion turns "europe-west1-b" into "europe-west1".
func zoneToRegion(zone string) string {
	if i := strings.LastIndex(zone, "-"); i > 0 {
		return zone[:i]
	}
	return zone
}

// lastSegment extracts the name from a resource path such as
// "projects/123/machineTypes/e2-medium".
func lastSegment(s string) string {
	parts := strings.Split(s, "/")
	return parts[len(parts)-1]
}

// nolint:gochecknoinits // registration-style init keeps provider wiring local to this file.
func init() {
	RegisterProvider(ProviderGCE, newGCEProvider)
}
