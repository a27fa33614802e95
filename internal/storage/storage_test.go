package storage

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportgate/reportgate/internal/config"
	"github.com/reportgate/reportgate/pkg/errors"
)

type fakeS3 struct {
	putKey    string
	putType   string
	putBody   []byte
	putErr    error
	deleteKey string
	deleteErr error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.putKey = aws.ToString(in.Key)
	f.putType = aws.ToString(in.ContentType)
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.putBody = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleteKey = aws.ToString(in.Key)
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &s3.DeleteObjectOutput{}, nil
}

func writeArtifact(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNew_NotConfigured(t *testing.T) {
	gw, err := New(context.Background(), config.StorageConfig{Region: "us-east-1"})
	require.NoError(t, err)
	assert.False(t, gw.Configured())

	_, err = gw.Upload(context.Background(), "/tmp/x", "pdf/1/x.pdf", "application/pdf")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, gw.Delete(context.Background(), "pdf/1/x.pdf"), ErrNotConfigured)
}

func TestPublicBaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StorageConfig
		want string
	}{
		{"explicit", config.StorageConfig{PublicBaseURL: "https://cdn.example.com/", Bucket: "b"}, "https://cdn.example.com"},
		{"endpoint", config.StorageConfig{Endpoint: "http://minio:9000", Bucket: "exports"}, "http://minio:9000/exports"},
		{"aws", config.StorageConfig{Bucket: "exports", Region: "eu-west-1"}, "https://exports.s3.eu-west-1.amazonaws.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, publicBaseURL(tt.cfg))
		})
	}
}

func TestS3Gateway_Upload(t *testing.T) {
	api := &fakeS3{}
	gw := newS3Gateway(api, config.StorageConfig{Bucket: "exports", Endpoint: "http://minio:9000"})

	res, err := gw.Upload(context.Background(), writeArtifact(t, "%PDF"), "pdf/7/report.pdf", "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, "pdf/7/report.pdf", res.Key)
	assert.Equal(t, "http://minio:9000/exports/pdf/7/report.pdf", res.URL)
	assert.EqualValues(t, 4, res.Size)
	assert.Equal(t, "pdf/7/report.pdf", api.putKey)
	assert.Equal(t, "application/pdf", api.putType)
	assert.Equal(t, "%PDF", string(api.putBody))
}

func TestS3Gateway_UploadFailure(t *testing.T) {
	api := &fakeS3{putErr: stderrors.New("connection refused")}
	gw := newS3Gateway(api, config.StorageConfig{Bucket: "exports", Region: "us-east-1"})

	_, err := gw.Upload(context.Background(), writeArtifact(t, "x"), "html/1/a.html", "text/html")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUploadFailure))

	_, err = gw.Upload(context.Background(), filepath.Join(t.TempDir(), "missing"), "k", "")
	assert.True(t, errors.HasCode(err, errors.ErrCodeUploadFailure))

	_, err = gw.Upload(context.Background(), writeArtifact(t, "x"), "", "")
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidation))
}

func TestS3Gateway_Delete(t *testing.T) {
	api := &fakeS3{}
	gw := newS3Gateway(api, config.StorageConfig{Bucket: "exports"})

	require.NoError(t, gw.Delete(context.Background(), "charts/3/c.png"))
	assert.Equal(t, "charts/3/c.png", api.deleteKey)

	api.deleteErr = &types.NoSuchKey{}
	assert.NoError(t, gw.Delete(context.Background(), "charts/3/c.png"))

	api.deleteErr = stderrors.New("denied")
	assert.Error(t, gw.Delete(context.Background(), "charts/3/c.png"))
}

func TestMemoryGateway(t *testing.T) {
	gw := NewMemoryGateway("https://cdn.test")
	res, err := gw.Upload(context.Background(), writeArtifact(t, "abc"), "html/2/r.html", "text/html")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/html/2/r.html", res.URL)

	data, ok := gw.Object("html/2/r.html")
	require.True(t, ok)
	assert.Equal(t, "abc", string(data))

	require.NoError(t, gw.Delete(context.Background(), "html/2/r.html"))
	assert.Empty(t, gw.Keys())
	assert.Equal(t, []string{"html/2/r.html"}, gw.Deleted())
}
