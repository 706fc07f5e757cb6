package simplepublish_test

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-publish/pkg/simplepublish"
	"github.com/tendant/simple-publish/pkg/simplepublish/objectkey"
	"github.com/tendant/simple-publish/pkg/simplepublish/storage/memory"
	"github.com/tendant/simple-publish/pkg/simplepublish/urlstrategy"
)

type brokenStore struct{ err error }

func (b brokenStore) Upload(ctx context.Context, r io.Reader, p simplepublish.UploadParams) error {
	return b.err
}
func (b brokenStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, b.err
}
func (b brokenStore) Delete(ctx context.Context, key string) error { return b.err }
func (b brokenStore) GetObjectMeta(ctx context.Context, key string) (*simplepublish.ObjectMeta, error) {
	return nil, b.err
}

func newTestGateway(store simplepublish.BlobStore) *simplepublish.Gateway {
	return simplepublish.NewGateway(store, "memory", objectkey.NewFlatGenerator(),
		urlstrategy.NewS3Strategy("bucket", "us-east-1"))
}

func TestGatewayPut(t *testing.T) {
	store := memory.New()
	gw := newTestGateway(store)

	obj, err := gw.Put(context.Background(), &simplepublish.FilePart{
		Reader:       strings.NewReader("png bytes"),
		OriginalName: "My Cover.PNG",
		MimeType:     "image/png",
		Size:         9,
	}, "content-images")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^content-images/[0-9a-f-]{36}\.png$`), obj.Key)
	assert.Equal(t, "https://bucket.s3.us-east-1.amazonaws.com/"+obj.Key, obj.URL)

	meta, err := store.GetObjectMeta(context.Background(), obj.Key)
	require.NoError(t, err)
	assert.Equal(t, "image/png", meta.ContentType)
}

func TestGatewayPutKeysAreUnique(t *testing.T) {
	gw := newTestGateway(memory.New())
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		obj, err := gw.Put(context.Background(), &simplepublish.FilePart{
			Reader:       strings.NewReader("same"),
			OriginalName: "same.pdf",
		}, "content-pdfs")
		require.NoError(t, err)
		assert.False(t, seen[obj.Key])
		seen[obj.Key] = true
	}
}

func TestGatewayDeleteNotFound(t *testing.T) {
	gw := newTestGateway(memory.New())

	err := gw.Delete(context.Background(), "content-images/missing.png")
	assert.ErrorIs(t, err, simplepublish.ErrNotFound)
	assert.NotErrorIs(t, err, simplepublish.ErrStoreUnavailable)

	var storageErr *simplepublish.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "delete", storageErr.Op)
	assert.Equal(t, "content-images/missing.png", storageErr.Key)
}

func TestGatewayBackendFailureIsStoreUnavailable(t *testing.T) {
	cause := errors.New("access denied")
	gw := newTestGateway(brokenStore{err: cause})

	_, err := gw.Put(context.Background(), &simplepublish.FilePart{Reader: strings.NewReader("x")}, "content-images")
	assert.ErrorIs(t, err, simplepublish.ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)

	err = gw.Delete(context.Background(), "k")
	assert.ErrorIs(t, err, simplepublish.ErrStoreUnavailable)
}

func TestGatewayPublicURLIsPure(t *testing.T) {
	gw := newTestGateway(brokenStore{err: errors.New("offline")})
	assert.Equal(t, "https://bucket.s3.us-east-1.amazonaws.com/avatars/user-avatar.png",
		gw.PublicURL("avatars/user-avatar.png"))
}
