package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	log "github.com/sirupsen/logrus"
)

// imdsAPI is the subset of the IMDS client used by awsProvider.
type imdsAPI interface {
	GetMetadata(ctx context.Context, params *imds.GetMetadataInput, optFns ...func(*imds.Options)) (*imds.GetMetadataOutput, error)
	GetInstanceIdentityDocument(ctx context.Context, params *imds.GetInstanceIdentityDocumentInput, optFns ...func(*imds.Options)) (*imds.GetInstanceIdentityDocumentOutput, error)
	GetUserData(ctx context.Context, params *imds.GetUserDataInput, optFns ...func(*imds.Options)) (*imds.GetUserDataOutput, error)
}

// awsProvider implements Provider for EC2 instances. Instance attributes come
// from the instance metadata service, tags from the EC2 API.
type awsProvider struct {
	imds imdsAPI
	tags func(ctx context.Context, region string) (ec2.DescribeTagsAPIClient, error)
}

var awsMetadataPaths = []string{
	"instance-id",
	"instance-type",
	"local-ipv4",
	"local-hostname",
	"placement/availability-zone",
}

func newAWSProvider() Provider {
	return &awsProvider{
		imds: imds.New(imds.Options{}),
		tags: func(ctx context.Context, region string) (ec2.DescribeTagsAPIClient, error) {
			cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
			if err != nil {
				return nil, fmt.Errorf("failed to load aws config: %w", err)
			}
			return ec2.NewFromConfig(cfg), nil
		},
	}
}

// InstanceMetadata fetches the metadata and tags of the running EC2 instance.
func (p *awsProvider) InstanceMetadata(ctx context.Context) (map[string]any, error) {
	md := map[string]any{}

	for _, path := range awsMetadataPaths {
		v, err := p.metadata(ctx, path)
		if err != nil {
			return nil, err
		}
		setPath(md, strings.Split(path, "/"), v)
	}

	out, err := p.imds.GetInstanceIdentityDocument(ctx, &imds.GetInstanceIdentityDocumentInput{})
	if err != nil {
		return nil, fmt.Errorf("get identity document: %w", err)
	}
	doc := out.InstanceIdentityDocument
	md["identity"] = map[string]any{
		"document": map[string]any{
			"accountId":        doc.AccountID,
			"architecture":     doc.Architecture,
			"availabilityZone": doc.AvailabilityZone,
			"imageId":          doc.ImageID,
			"instanceId":       doc.InstanceID,
			"instanceType":     doc.InstanceType,
			"privateIp":        doc.PrivateIP,
			"region":           doc.Region,
			"version":          doc.Version,
		},
	}

	userData, err := p.userData(ctx)
	if err != nil {
		return nil, err
	}
	md["user-data"] = userData

	id, _ := md["instance-id"].(string)
	tags, err := p.instanceTags(ctx, doc.Region, id)
	if err != nil {
		return nil, err
	}
	md["tags"] = tags

	return md, nil
}

func (p *awsProvider) metadata(ctx context.Context, path string) (string, error) {
	out, err := p.imds.GetMetadata(ctx, &imds.GetMetadataInput{Path: path})
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", path, err)
	}
	defer func() {
		_ = out.Content.Close()
	}()

	b, err := io.ReadAll(out.Content)
	if err != nil {
		return "", fmt.Errorf("read metadata %s: %w", path, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// userData returns the instance user data. Instances launched without user
// data answer 404, which is not an error.
func (p *awsProvider) userData(ctx context.Context) (string, error) {
	out, err := p.imds.GetUserData(ctx, &imds.GetUserDataInput{})
	if err != nil {
		var re interface{ HTTPStatusCode() int }
		if errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound {
			log.Debug("instance has no user data")
			return "", nil
		}
		return "", fmt.Errorf("get user data: %w", err)
	}
	defer func() {
		_ = out.Content.Close()
	}()

	b, err := io.ReadAll(out.Content)
	if err != nil {
		return "", fmt.Errorf("read user data: %w", err)
	}
	return string(b), nil
}

// instanceTags returns the instance tags keyed by lower-cased tag name.
func (p *awsProvider) instanceTags(ctx context.Context, region, id string) (map[string]any, error) {
	if id == "" {
		return nil, errors.New("instance id is empty")
	}

	client, err := p.tags(ctx, region)
	if err != nil {
		return nil, err
	}

	input := &ec2.DescribeTagsInput{
		Filters: []types.Filter{
			{Name: aws.String("resource-id"), Values: []string{id}},
		},
	}

	tags := map[string]any{}
	paginator := ec2.NewDescribeTagsPaginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			var ae smithy.APIError
			if errors.As(err, &ae) {
				return nil, fmt.Errorf("describe tags %s: %s: %w", id, ae.ErrorCode(), err)
			}
			return nil, fmt.Errorf("describe tags %s: %w", id, err)
		}
		for _, tag := range page.Tags {
			if tag.Key == nil {
				continue
			}
			tags[strings.ToLower(*tag.Key)] = aws.ToString(tag.Value)
		}
	}

	return tags, nil
}

// setPath stores v under the nested keys of path, creating maps as needed.
func setPath(m map[string]any, path []string, v any) {
	cur := m
	for _, p := range path[:len(path)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = v
}

// nolint:gochecknoinits // registration-style init keeps provider wiring local to this file.
func init() {
	RegisterProvider(ProviderAWS, newAWSProvider)
}
