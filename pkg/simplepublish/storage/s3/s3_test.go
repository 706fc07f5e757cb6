package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-publish/pkg/simplepublish"
)

func TestS3Backend_BasicConfiguration(t *testing.T) {
	t.Run("EmptyBucket", func(t *testing.T) {
		_, err := New(context.Background(), Config{Region: "us-east-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("DefaultRegion", func(t *testing.T) {
		backend, err := New(context.Background(), Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "us-east-1", backend.config.Region)
	})

	t.Run("CustomEndpoint", func(t *testing.T) {
		backend, err := New(context.Background(), Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
			Endpoint:        "http://localhost:9000",
			UsePathStyle:    true,
		})
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:9000", aws.ToString(backend.client.Options().BaseEndpoint))
		assert.True(t, backend.client.Options().UsePathStyle)
	})
}

func TestPutObjectInput(t *testing.T) {
	backend, err := New(context.Background(), Config{
		Bucket:          "content",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		PublicRead:      true,
		EnableSSE:       true,
		SSEAlgorithm:    "aws:kms",
		SSEKMSKeyID:     "key-1",
	})
	require.NoError(t, err)

	input := backend.putObjectInput(strings.NewReader("x"), simplepublish.UploadParams{
		ObjectKey: "content-images/a.png",
		MimeType:  "image/png",
	})
	assert.Equal(t, "content", aws.ToString(input.Bucket))
	assert.Equal(t, "content-images/a.png", aws.ToString(input.Key))
	assert.Equal(t, "image/png", aws.ToString(input.ContentType))
	assert.Equal(t, types.ObjectCannedACLPublicRead, input.ACL)
	assert.Equal(t, types.ServerSideEncryptionAwsKms, input.ServerSideEncryption)
	assert.Equal(t, "key-1", aws.ToString(input.SSEKMSKeyId))
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"typed not found", &types.NotFound{}, true},
		{"typed no such key", fmt.Errorf("get: %w", &types.NoSuchKey{}), true},
		{"generic api error", &smithy.GenericAPIError{Code: "NoSuchKey"}, true},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"network", errors.New("dial tcp: connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotFound(tt.err))
		})
	}
}
