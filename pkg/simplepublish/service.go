package simplepublish

import "context"

// Service defines the content asset lifecycle operations
type Service interface {
	// Content operations
	CreateContent(ctx context.Context, req CreateContentRequest) (*ContentItem, error)
	UpdateContent(ctx context.Context, req UpdateContentRequest) (*ContentItem, error)
	DeleteContent(ctx context.Context, category Category, id int64) error
	GetContent(ctx context.Context, category Category, id int64) (*ContentItem, error)
	GetContentBySlug(ctx context.Context, category Category, slug string) (*ContentItem, error)
	ListContent(ctx context.Context, req ListContentRequest) ([]*ContentItem, error)

	// Profile operations
	UploadAvatar(ctx context.Context, file *FilePart) (*Profile, error)
	GetProfile(ctx context.Context) (*Profile, error)

	// View builders derive public URLs from stored keys
	ContentView(item *ContentItem) ContentItemView
	ProfileView(profile *Profile) ProfileView
}
