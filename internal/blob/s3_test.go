package blob

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcfg "github.com/fdg312/coach-nutrition/internal/config"
)

func s3TestConfig() appcfg.S3Config {
	return appcfg.S3Config{
		Endpoint:        "http://127.0.0.1:9000",
		Bucket:          "coach",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	}
}

func TestNewS3Store_RegionDefaults(t *testing.T) {
	store, err := NewS3Store(context.Background(), s3TestConfig())
	require.NoError(t, err)
	assert.Equal(t, defaultRegion, store.client.Options().Region)
	assert.Equal(t, "coach", store.bucket)
}

func TestNewS3Store_MissingCredentials(t *testing.T) {
	cfg := s3TestConfig()
	cfg.SecretAccessKey = ""

	_, err := NewS3Store(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_SECRET_ACCESS_KEY")
}

func TestNewS3Store_PathStyle(t *testing.T) {
	cfg := s3TestConfig()
	cfg.ForcePathStyle = true

	store, err := NewS3Store(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, store.client.Options().UsePathStyle)
	require.NotNil(t, store.client.Options().BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *store.client.Options().BaseEndpoint)
}

func TestS3Store_ObjectKey(t *testing.T) {
	tests := []struct {
		prefix string
		key    string
		want   string
	}{
		{"", "checked-state/client-1.json", "checked-state/client-1.json"},
		{"coach", "checked-state/client-1.json", "coach/checked-state/client-1.json"},
		{"/coach/prod/", "checked-state/client-1.json", "coach/prod/checked-state/client-1.json"},
		{"coach", "../../etc/passwd", "coach/etc/passwd"},
	}
	for _, tt := range tests {
		s := &S3Store{prefix: normalizePrefix(tt.prefix)}
		assert.Equal(t, tt.want, s.objectKey(tt.key), "prefix=%q key=%q", tt.prefix, tt.key)
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(fmt.Errorf("wrapped: %w", &types.NoSuchKey{})))
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NotFound"}))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("connection reset")))
}
