package dataset

import (
	"context"
	"errors"
	"io"
	pathpkg "path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client the driver uses
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Driver reads GeoJSON and CSV objects from S3. "s3://bucket/key" is a
// single dataset; "s3://bucket/prefix/" is a workspace of the objects
// directly under the prefix. Every scan fetches the object again.
type S3Driver struct {
	client S3API
}

// NewS3Driver creates an S3 driver
func NewS3Driver(client S3API) *S3Driver {
	return &S3Driver{client: client}
}

func (d *S3Driver) Name() string { return "s3" }

func (d *S3Driver) Probe(path string) bool {
	return strings.HasPrefix(strings.ToLower(path), "s3://")
}

func (d *S3Driver) Open(ctx context.Context, path string) (*Resolution, error) {
	bucket, key := parseS3URL(path)
	if bucket == "" {
		return nil, &NotFoundError{Path: path, Err: errors.New("missing bucket")}
	}

	if key == "" || strings.HasSuffix(key, "/") {
		return d.openPrefix(ctx, path, bucket, key)
	}

	h, err := d.openObject(ctx, path, bucket, key)
	if err != nil {
		return nil, err
	}
	return single(path, h), nil
}

func (d *S3Driver) openObject(ctx context.Context, path, bucket, key string) (*Handle, error) {
	open := d.objectOpener(path, bucket, key)
	name := pathpkg.Base(key)
	switch {
	case hasExt(key, ".geojson", ".json"):
		return openGeoJSON(ctx, path, name, open)
	case hasExt(key, ".csv"):
		return openCSV(ctx, path, name, open)
	default:
		return nil, unsupported(path, "only GeoJSON and CSV objects can be read from S3", nil)
	}
}

func (d *S3Driver) openPrefix(ctx context.Context, path, bucket, prefix string) (*Resolution, error) {
	paginator := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			var nsb *types.NoSuchBucket
			if errors.As(err, &nsb) {
				return nil, &NotFoundError{Path: path, Err: err}
			}
			return nil, unsupported(path, "cannot list prefix", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if hasExt(key, ".geojson", ".json", ".csv") {
				keys = append(keys, key)
			}
		}
	}
	if len(keys) == 0 {
		return nil, &NotFoundError{Path: path, Err: errors.New("no datasets under prefix")}
	}

	res := &Resolution{Path: path, Workspace: true}
	for _, key := range keys {
		name := strings.TrimPrefix(key, prefix)
		objPath := "s3://" + bucket + "/" + key
		h, err := d.openObject(ctx, objPath, bucket, key)
		if err != nil {
			res.Members = append(res.Members, Member{Name: name, Path: objPath, Err: err})
			continue
		}
		h.Name = name
		res.Members = append(res.Members, Member{Name: name, Path: objPath, Handle: h})
	}
	sortMembers(res.Members)
	return res, nil
}

func (d *S3Driver) objectOpener(path, bucket, key string) opener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			var nsk *types.NoSuchKey
			if errors.As(err, &nsk) {
				return nil, &NotFoundError{Path: path, Err: err}
			}
			return nil, err
		}
		return out.Body, nil
	}
}

func parseS3URL(path string) (bucket, key string) {
	rest := path[len("s3://"):]
	bucket, key, _ = strings.Cut(rest, "/")
	return bucket, key
}
