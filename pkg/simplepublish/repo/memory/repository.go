package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tendant/simple-publish/pkg/simplepublish"
)

type table struct {
	nextID int64
	items  map[int64]*simplepublish.ContentItem
	slugs  map[string]int64 // slug -> id
}

// Repository implements simplepublish.Store using in-memory storage
type Repository struct {
	mu      sync.RWMutex
	tables  map[simplepublish.Category]*table
	profile *simplepublish.Profile
	now     func() time.Time
}

// New creates a new in-memory repository
func New() *Repository {
	r := &Repository{
		tables: make(map[simplepublish.Category]*table),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, c := range simplepublish.Categories() {
		r.tables[c] = &table{
			items: make(map[int64]*simplepublish.ContentItem),
			slugs: make(map[string]int64),
		}
	}
	return r
}

func (r *Repository) table(category simplepublish.Category) (*table, error) {
	t, ok := r.tables[category]
	if !ok {
		return nil, simplepublish.Validationf("invalid category %q", category)
	}
	return t, nil
}

// Content operations

func (r *Repository) Create(ctx context.Context, item *simplepublish.ContentItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.table(item.Category)
	if err != nil {
		return err
	}
	if _, taken := t.slugs[item.Slug]; taken {
		return fmt.Errorf("%w: slug %q already exists in %s", simplepublish.ErrConflict, item.Slug, item.Category)
	}

	t.nextID++
	now := r.now()
	item.ID = t.nextID
	item.CreatedAt = now
	item.UpdatedAt = now

	// Store a copy to avoid external modifications
	itemCopy := *item
	t.items[item.ID] = &itemCopy
	t.slugs[item.Slug] = item.ID
	return nil
}

func (r *Repository) FindByID(ctx context.Context, category simplepublish.Category, id int64) (*simplepublish.ContentItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, err := r.table(category)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[id]
	if !ok {
		return nil, simplepublish.ErrNotFound
	}
	itemCopy := *item
	return &itemCopy, nil
}

func (r *Repository) FindBySlug(ctx context.Context, category simplepublish.Category, slug string) (*simplepublish.ContentItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, err := r.table(category)
	if err != nil {
		return nil, err
	}
	id, ok := t.slugs[slug]
	if !ok {
		return nil, simplepublish.ErrNotFound
	}
	itemCopy := *t.items[id]
	return &itemCopy, nil
}

func (r *Repository) SlugExists(ctx context.Context, category simplepublish.Category, slug string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, err := r.table(category)
	if err != nil {
		return false, err
	}
	_, ok := t.slugs[slug]
	return ok, nil
}

func (r *Repository) Update(ctx context.Context, category simplepublish.Category, id int64, patch simplepublish.ContentPatch) (*simplepublish.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.table(category)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[id]
	if !ok {
		return nil, simplepublish.ErrNotFound
	}

	patch.Apply(item)
	item.UpdatedAt = r.now()
	itemCopy := *item
	return &itemCopy, nil
}

func (r *Repository) Delete(ctx context.Context, category simplepublish.Category, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.table(category)
	if err != nil {
		return err
	}
	item, ok := t.items[id]
	if !ok {
		return simplepublish.ErrNotFound
	}
	delete(t.slugs, item.Slug)
	delete(t.items, id)
	return nil
}

func (r *Repository) List(ctx context.Context, category simplepublish.Category, opts simplepublish.ListOptions) ([]*simplepublish.ContentItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, err := r.table(category)
	if err != nil {
		return nil, err
	}

	result := make([]*simplepublish.ContentItem, 0, len(t.items))
	for _, item := range t.items {
		itemCopy := *item
		result = append(result, &itemCopy)
	}

	// Sort by created_at descending, newest id first on ties
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return []*simplepublish.ContentItem{}, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(result) {
		result = result[:opts.Limit]
	}
	return result, nil
}

// Profile operations

func (r *Repository) GetProfile(ctx context.Context) (*simplepublish.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.profile == nil {
		return nil, simplepublish.ErrNotFound
	}
	p := *r.profile
	return &p, nil
}

func (r *Repository) UpsertProfileAvatar(ctx context.Context, avatarKey string) (*simplepublish.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.profile == nil {
		r.profile = &simplepublish.Profile{ID: simplepublish.ProfileID, CreatedAt: now}
	}
	r.profile.AvatarKey = avatarKey
	r.profile.UpdatedAt = now
	p := *r.profile
	return &p, nil
}
