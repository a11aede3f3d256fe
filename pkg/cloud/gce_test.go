package cloud

import (
	"context"
	"errors"
	"testing"
)

type fakeGCEMetadata struct {
	err error
}

func (f *fakeGCEMetadata) ProjectIDWithContext(context.Context) (string, error) {
	return "my-project", f.err
}
func (f *fakeGCEMetadata) ZoneWithContext(context.Context) (string, error) {
	return "europe-west1-b", nil
}
func (f *fakeGCEMetadata) InstanceNameWithContext(context.Context) (string, error) {
	return "consul-1", nil
}
func (f *fakeGCEMetadata) InstanceIDWithContext(context.Context) (string, error) {
	return "1234567890", nil
}
func (f *fakeGCEMetadata) InternalIPWithContext(context.Context) (string, error) {
	return "10.132.0.7", nil
}
func (f *fakeGCEMetadata) HostnameWithContext(context.Context) (string, error) {
	return "consul-1.europe-west1-b.c.my-project.internal", nil
}
func (f *fakeGCEMetadata) GetWithContext(_ context.Context, suffix string) (string, error) {
	if suffix != "instance/machine-type" {
		return "", errors.New("unexpected suffix " + suffix)
	}
	return "projects/123/machineTypes/e2-medium", nil
}

func TestGCEInstanceMetadata(t *testing.T) {
	p := &gceProvider{
		md: &fakeGCEMetadata{},
		labels: func(_ context.Context, project, zone, instance string) (map[string]string, error) {
			if project != "my-project" || zone != "europe-west1-b" || instance != "consul-1" {
				t.Errorf("labels called with %s/%s/%s", project, zone, instance)
			}
			return map[string]string{"cluster": "prod", "Consul": "join123"}, nil
		},
	}

	md, err := p.InstanceMetadata(context.Background())
	if err != nil {
		t.Fatalf("InstanceMetadata returned error: %v", err)
	}

	if md["instance-type"] != "e2-medium" {
		t.Errorf("instance-type = %v, want e2-medium", md["instance-type"])
	}
	doc := md["identity"].(map[string]any)["document"].(map[string]any)
	if doc["region"] != "europe-west1" {
		t.Errorf("region = %v, want europe-west1", doc["region"])
	}
	tags := md["tags"].(map[string]any)
	if tags["consul"] != "join123" || tags["cluster"] != "prod" {
		t.Errorf("unexpected tags %#v", tags)
	}
}

func TestGCEInstanceMetadataError(t *testing.T) {
	p := &gceProvider{md: &fakeGCEMetadata{err: errors.New("not on GCE")}}
	if _, err := p.InstanceMetadata(context.Background()); err == nil {
		t.Fatal("expected error from metadata server")
	}
}

func TestZoneToRegion(t *testing.T) {
	tests := map[string]string{
		"europe-west1-b": "europe-west1",
		"us-central1-a":  "us-central1",
		"nozone":         "nozone",
	}
	for in, want := range tests {
		if got := zoneToRegion(in); got != want {
			t.Errorf("zoneToRegion(%q) = %q, want %q", in, got, want)
		}
	}
}
