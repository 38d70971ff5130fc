package dataset

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	bucket  string
	objects map[string]string
	gets    int
	listErr error
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.gets++
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok || aws.ToString(in.Bucket) != f.bucket {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if aws.ToString(in.Bucket) != f.bucket {
		return nil, &types.NoSuchBucket{}
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	prefix := aws.ToString(in.Prefix)
	var keys []string
	for k := range f.objects {
		rest, ok := strings.CutPrefix(k, prefix)
		if ok && !strings.Contains(rest, "/") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		bucket: "gis",
		objects: map[string]string{
			"data/a.geojson":     pointGeoJSON,
			"data/b.csv":         "id,WKT\n1,POINT (0 0)\n",
			"data/README.md":     "docs",
			"data/old/c.geojson": pointGeoJSON,
		},
	}
}

func TestS3Driver_Object(t *testing.T) {
	client := newFakeS3()
	d := NewS3Driver(client)
	ctx := context.Background()

	require.True(t, d.Probe("s3://gis/data/a.geojson"))
	res, err := d.Open(ctx, "s3://gis/data/a.geojson")
	require.NoError(t, err)
	require.Len(t, res.Members, 1)

	h := res.Members[0].Handle
	assert.Equal(t, "a.geojson", h.Name)
	assert.Empty(t, h.SourceFile)
	assert.Equal(t, int64(1), h.Count)

	rows := collectRows(t, h)
	assert.Len(t, rows, 1)
	assert.Equal(t, 2, client.gets)
}

func TestS3Driver_Prefix(t *testing.T) {
	res, err := NewS3Driver(newFakeS3()).Open(context.Background(), "s3://gis/data/")
	require.NoError(t, err)
	assert.True(t, res.Workspace)
	require.Len(t, res.Members, 2)
	assert.Equal(t, "a.geojson", res.Members[0].Name)
	assert.Equal(t, "b.csv", res.Members[1].Name)
	assert.Equal(t, "s3://gis/data/b.csv", res.Members[1].Path)
	assert.Equal(t, GeometryPoint, res.Members[1].Handle.GeometryType)
}

func TestS3Driver_Errors(t *testing.T) {
	d := NewS3Driver(newFakeS3())
	ctx := context.Background()
	var nf *NotFoundError

	_, err := d.Open(ctx, "s3://gis/data/missing.geojson")
	assert.ErrorAs(t, err, &nf)

	_, err = d.Open(ctx, "s3://other/data/")
	assert.ErrorAs(t, err, &nf)

	_, err = d.Open(ctx, "s3://gis/empty/")
	assert.ErrorAs(t, err, &nf)

	_, err = d.Open(ctx, "s3://")
	assert.ErrorAs(t, err, &nf)

	var uf *UnsupportedFormatError
	_, err = d.Open(ctx, "s3://gis/data/README.md")
	assert.ErrorAs(t, err, &uf)
}

func TestS3Driver_ListFailure(t *testing.T) {
	client := newFakeS3()
	client.listErr = errors.New("AccessDenied: not authorized")

	_, err := NewS3Driver(client).Open(context.Background(), "s3://gis/data/")
	var uf *UnsupportedFormatError
	require.ErrorAs(t, err, &uf)
	assert.Equal(t, "s3://gis/data/", uf.Path)
	assert.Equal(t, "cannot list prefix", uf.Reason)
	assert.ErrorIs(t, err, client.listErr)
}

func TestNewS3Client(t *testing.T) {
	client, err := NewS3Client(context.Background(), S3ClientOptions{
		Region:          "eu-west-1",
		Endpoint:        "http://localhost:9000",
		UsePathStyle:    true,
		AccessKeyID:     "minio",
		SecretAccessKey: "minio-secret",
	})
	require.NoError(t, err)

	opts := client.Options()
	assert.Equal(t, "eu-west-1", opts.Region)
	assert.Equal(t, "http://localhost:9000", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)

	creds, err := opts.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "minio", creds.AccessKeyID)
	assert.Equal(t, "minio-secret", creds.SecretAccessKey)

	// the real client satisfies the driver's interface
	var _ S3API = client
}
