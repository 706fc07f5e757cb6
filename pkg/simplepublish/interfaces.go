package simplepublish

import (
	"context"
	"io"
	"time"
)

// BlobStore defines the interface for object storage backends
type BlobStore interface {
	// Upload writes the reader to params.ObjectKey, overwriting any existing object
	Upload(ctx context.Context, reader io.Reader, params UploadParams) error

	// Download opens the object for reading. Returns ErrNotFound if absent.
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete removes the object. Returns ErrNotFound if absent.
	Delete(ctx context.Context, objectKey string) error

	// GetObjectMeta retrieves metadata for an object. Returns ErrNotFound if absent.
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)
}

// Repository persists content items, one namespace per category.
type Repository interface {
	// Create inserts item, assigning ID, CreatedAt and UpdatedAt.
	// A duplicate slug within the category returns ErrConflict.
	Create(ctx context.Context, item *ContentItem) error
	FindByID(ctx context.Context, category Category, id int64) (*ContentItem, error)
	FindBySlug(ctx context.Context, category Category, slug string) (*ContentItem, error)
	SlugExists(ctx context.Context, category Category, slug string) (bool, error)
	Update(ctx context.Context, category Category, id int64, patch ContentPatch) (*ContentItem, error)
	Delete(ctx context.Context, category Category, id int64) error
	// List returns items newest first.
	List(ctx context.Context, category Category, opts ListOptions) ([]*ContentItem, error)
}

// ProfileRepository persists the singleton profile row.
type ProfileRepository interface {
	// GetProfile returns ErrNotFound until the first avatar upsert.
	GetProfile(ctx context.Context) (*Profile, error)
	UpsertProfileAvatar(ctx context.Context, avatarKey string) (*Profile, error)
}

// Store is a repository that also owns the profile row.
type Store interface {
	Repository
	ProfileRepository
}

// EventSink receives lifecycle notifications. Implementations must not block.
type EventSink interface {
	// OperationFinished is fired once per service operation
	OperationFinished(ctx context.Context, op string, category Category, err error)

	// CompensationFinished is fired once per unwound committed action
	CompensationFinished(ctx context.Context, op string, action string, err error)

	// ObjectOrphaned is fired when a best-effort object delete fails
	ObjectOrphaned(ctx context.Context, op string, key string, err error)
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	ObjectKey string
	MimeType  string
	Size      int64 // -1 when unknown
}
