package simplepublish

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tendant/simple-publish/pkg/simplepublish/objectkey"
	"github.com/tendant/simple-publish/pkg/simplepublish/urlstrategy"
)

// StoredObject is the result of a successful Gateway.Put.
type StoredObject struct {
	Key string
	URL string
}

// Gateway owns object lifecycle: it names, writes and removes blobs and
// derives their public URLs. It performs no retries.
type Gateway struct {
	store   BlobStore
	backend string
	keys    objectkey.Generator
	urls    urlstrategy.URLStrategy
}

// NewGateway creates a gateway over store. backend names the store in errors.
func NewGateway(store BlobStore, backend string, keys objectkey.Generator, urls urlstrategy.URLStrategy) *Gateway {
	if keys == nil {
		keys = objectkey.NewFlatGenerator()
	}
	return &Gateway{store: store, backend: backend, keys: keys, urls: urls}
}

// Put uploads file under prefix with a freshly generated key.
func (g *Gateway) Put(ctx context.Context, file *FilePart, prefix string) (StoredObject, error) {
	key := g.keys.GenerateKey(prefix, &objectkey.KeyMetadata{
		FileName:    file.OriginalName,
		ContentType: file.MimeType,
	})
	if err := g.PutAt(ctx, key, file.Reader, file.MimeType, file.Size); err != nil {
		return StoredObject{}, err
	}
	return StoredObject{Key: key, URL: g.PublicURL(key)}, nil
}

// PutAt writes reader to a fixed key, overwriting any existing object.
func (g *Gateway) PutAt(ctx context.Context, key string, reader io.Reader, mimeType string, size int64) error {
	err := g.store.Upload(ctx, reader, UploadParams{ObjectKey: key, MimeType: mimeType, Size: size})
	if err != nil {
		return g.wrap("upload", key, err)
	}
	return nil
}

// Delete removes key. A missing object returns ErrNotFound.
func (g *Gateway) Delete(ctx context.Context, key string) error {
	if err := g.store.Delete(ctx, key); err != nil {
		return g.wrap("delete", key, err)
	}
	return nil
}

// PublicURL derives the public URL of key without touching the store.
func (g *Gateway) PublicURL(key string) string {
	if g.urls == nil {
		return key
	}
	return g.urls.PublicURL(key)
}

func (g *Gateway) wrap(op, key string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return &StorageError{Backend: g.backend, Key: key, Op: op, Err: ErrNotFound}
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return &StorageError{Backend: g.backend, Key: key, Op: op, Err: err}
	}
	return &StorageError{Backend: g.backend, Key: key, Op: op, Err: fmt.Errorf("%w: %w", ErrStoreUnavailable, err)}
}
