package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
)

// fakeIMDS serves canned instance metadata.
type fakeIMDS struct {
	paths    map[string]string
	doc      imds.InstanceIdentityDocument
	userData *string
	err      error
}

func (f *fakeIMDS) GetMetadata(_ context.Context, in *imds.GetMetadataInput, _ ...func(*imds.Options)) (*imds.GetMetadataOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.paths[in.Path]
	if !ok {
		return nil, fmt.Errorf("no metadata at %s", in.Path)
	}
	return &imds.GetMetadataOutput{Content: io.NopCloser(strings.NewReader(v + "\n"))}, nil
}

func (f *fakeIMDS) GetInstanceIdentityDocument(context.Context, *imds.GetInstanceIdentityDocumentInput, ...func(*imds.Options)) (*imds.GetInstanceIdentityDocumentOutput, error) {
	return &imds.GetInstanceIdentityDocumentOutput{InstanceIdentityDocument: f.doc}, nil
}

func (f *fakeIMDS) GetUserData(context.Context, *imds.GetUserDataInput, ...func(*imds.Options)) (*imds.GetUserDataOutput, error) {
	if f.userData == nil {
		return nil, &statusError{code: http.StatusNotFound}
	}
	return &imds.GetUserDataOutput{Content: io.NopCloser(strings.NewReader(*f.userData))}, nil
}

type statusError struct{ code int }

func (e *statusError) Error() string       { return fmt.Sprintf("http status %d", e.code) }
func (e *statusError) HTTPStatusCode() int { return e.code }

// fakeTags returns its tags split over two pages.
type fakeTags struct {
	tags  []types.TagDescription
	err   error
	calls int
}

func (f *fakeTags) DescribeTags(_ context.Context, in *ec2.DescribeTagsInput, _ ...func(*ec2.Options)) (*ec2.DescribeTagsOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	half := len(f.tags) / 2
	if in.NextToken == nil {
		return &ec2.DescribeTagsOutput{Tags: f.tags[:half], NextToken: aws.String("page-2")}, nil
	}
	return &ec2.DescribeTagsOutput{Tags: f.tags[half:]}, nil
}

func newFakeAWS(tags *fakeTags, md *fakeIMDS) *awsProvider {
	return &awsProvider{
		imds: md,
		tags: func(context.Context, string) (ec2.DescribeTagsAPIClient, error) { return tags, nil },
	}
}

func defaultFakeIMDS() *fakeIMDS {
	return &fakeIMDS{
		paths: map[string]string{
			"instance-id":                 "i-0abc",
			"instance-type":               "m5.large",
			"local-ipv4":                  "10.1.2.3",
			"local-hostname":              "ip-10-1-2-3.ec2.internal",
			"placement/availability-zone": "us-east-1a",
		},
		doc: imds.InstanceIdentityDocument{Region: "us-east-1", InstanceID: "i-0abc", PrivateIP: "10.1.2.3"},
	}
}

func TestAWSInstanceMetadata(t *testing.T) {
	tags := &fakeTags{tags: []types.TagDescription{
		{Key: aws.String("Cluster"), Value: aws.String("prod")},
		{Key: aws.String("Consul"), Value: aws.String("join123")},
		{Key: aws.String("Name"), Value: aws.String("legacy_1")},
		{Key: aws.String("Role"), Value: aws.String("api")},
	}}
	p := newFakeAWS(tags, defaultFakeIMDS())

	md, err := p.InstanceMetadata(context.Background())
	if err != nil {
		t.Fatalf("InstanceMetadata returned error: %v", err)
	}

	if md["instance-type"] != "m5.large" {
		t.Errorf("instance-type = %v, want m5.large", md["instance-type"])
	}
	if md["local-ipv4"] != "10.1.2.3" {
		t.Errorf("local-ipv4 = %v, want trimmed value", md["local-ipv4"])
	}
	placement, ok := md["placement"].(map[string]any)
	if !ok || placement["availability-zone"] != "us-east-1a" {
		t.Errorf("placement = %#v", md["placement"])
	}
	if md["user-data"] != "" {
		t.Errorf("user-data = %q, want empty for 404", md["user-data"])
	}

	got := md["tags"].(map[string]any)
	want := map[string]string{"cluster": "prod", "consul": "join123", "name": "legacy_1", "role": "api"}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("tags[%q] = %v, want %q", k, got[k], v)
		}
	}
	if tags.calls != 2 {
		t.Errorf("DescribeTags called %d times, want 2 pages", tags.calls)
	}
}

func TestAWSInstanceMetadataUserData(t *testing.T) {
	md := defaultFakeIMDS()
	ud := "#cloud-config\n"
	md.userData = &ud
	p := newFakeAWS(&fakeTags{}, md)

	out, err := p.InstanceMetadata(context.Background())
	if err != nil {
		t.Fatalf("InstanceMetadata returned error: %v", err)
	}
	if out["user-data"] != ud {
		t.Errorf("user-data = %q, want %q", out["user-data"], ud)
	}
}

func TestAWSInstanceMetadataErrors(t *testing.T) {
	t.Run("imds unreachable", func(t *testing.T) {
		md := defaultFakeIMDS()
		md.err = errors.New("dial tcp 169.254.169.254:80: i/o timeout")
		p := newFakeAWS(&fakeTags{}, md)

		if _, err := p.InstanceMetadata(context.Background()); err == nil {
			t.Fatal("expected error when IMDS is unreachable")
		}
	})

	t.Run("describe tags denied", func(t *testing.T) {
		tags := &fakeTags{err: &smithy.GenericAPIError{Code: "UnauthorizedOperation", Message: "denied"}}
		p := newFakeAWS(tags, defaultFakeIMDS())

		_, err := p.InstanceMetadata(context.Background())
		if err == nil {
			t.Fatal("expected error when DescribeTags fails")
		}
		if !strings.Contains(err.Error(), "UnauthorizedOperation") {
			t.Errorf("error %q should carry the API error code", err)
		}
	})
}

func TestSetPath(t *testing.T) {
	m := map[string]any{}
	setPath(m, []string{"placement", "availability-zone"}, "us-east-1a")
	setPath(m, []string{"placement", "region"}, "us-east-1")
	setPath(m, []string{"instance-id"}, "i-1")

	placement := m["placement"].(map[string]any)
	if placement["availability-zone"] != "us-east-1a" || placement["region"] != "us-east-1" {
		t.Errorf("unexpected placement: %#v", placement)
	}
	if m["instance-id"] != "i-1" {
		t.Errorf("unexpected instance-id: %v", m["instance-id"])
	}
}
