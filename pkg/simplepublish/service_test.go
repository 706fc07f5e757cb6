package simplepublish_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-publish/pkg/simplepublish"
	repomemory "github.com/tendant/simple-publish/pkg/simplepublish/repo/memory"
	"github.com/tendant/simple-publish/pkg/simplepublish/storage/memory"
	"github.com/tendant/simple-publish/pkg/simplepublish/urlstrategy"
)

// flakyStore wraps the memory repository with injectable failures.
type flakyStore struct {
	*repomemory.Repository
	createErr error
	updateErr error
	deletes   int
}

func (f *flakyStore) Create(ctx context.Context, item *simplepublish.ContentItem) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.Repository.Create(ctx, item)
}

func (f *flakyStore) Update(ctx context.Context, c simplepublish.Category, id int64, p simplepublish.ContentPatch) (*simplepublish.ContentItem, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.Repository.Update(ctx, c, id, p)
}

func (f *flakyStore) Delete(ctx context.Context, c simplepublish.Category, id int64) error {
	f.deletes++
	return f.Repository.Delete(ctx, c, id)
}

// countingBlobs wraps the memory backend, counting calls and injecting failures.
type countingBlobs struct {
	*memory.Backend
	mu         sync.Mutex
	uploads    int
	deletes    int
	failUpload map[int]error // 1-based upload index -> error
	deleteErr  error
}

func (c *countingBlobs) Upload(ctx context.Context, r io.Reader, p simplepublish.UploadParams) error {
	c.mu.Lock()
	c.uploads++
	err := c.failUpload[c.uploads]
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.Backend.Upload(ctx, r, p)
}

func (c *countingBlobs) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	c.deletes++
	err := c.deleteErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.Backend.Delete(ctx, key)
}

type opRecorder struct {
	simplepublish.NoopEventSink
	mu        sync.Mutex
	ops       []string
	orphans   []string
	undoFails int
}

func (r *opRecorder) OperationFinished(ctx context.Context, op string, c simplepublish.Category, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *opRecorder) CompensationFinished(ctx context.Context, op, action string, err error) {
	if err != nil {
		r.mu.Lock()
		r.undoFails++
		r.mu.Unlock()
	}
}

func (r *opRecorder) ObjectOrphaned(ctx context.Context, op, key string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orphans = append(r.orphans, key)
}

type fixture struct {
	svc    simplepublish.Service
	store  *flakyStore
	blobs  *countingBlobs
	events *opRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  &flakyStore{Repository: repomemory.New()},
		blobs:  &countingBlobs{Backend: memory.New(), failUpload: map[int]error{}},
		events: &opRecorder{},
	}
	svc, err := simplepublish.New(
		simplepublish.WithRepository(f.store),
		simplepublish.WithBlobStore("memory", f.blobs),
		simplepublish.WithURLStrategy(urlstrategy.NewS3Strategy("bucket", "us-east-1")),
		simplepublish.WithEventSink(f.events),
		simplepublish.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		simplepublish.WithProfileInfo("Site Owner", "owner@example.com"),
	)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func file(name, mimeType, data string) *simplepublish.FilePart {
	return &simplepublish.FilePart{
		Reader:       strings.NewReader(data),
		OriginalName: name,
		MimeType:     mimeType,
		Size:         int64(len(data)),
	}
}

func createReq(title string) simplepublish.CreateContentRequest {
	return simplepublish.CreateContentRequest{
		Category: simplepublish.CategoryArticle,
		Title:    title,
		Author:   "Ada",
		Genre:    "essay",
		Content:  "body text",
		Cover:    file("cover.png", "image/png", "img1"),
		PDF:      file("doc.pdf", "application/pdf", "pdf1"),
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := simplepublish.New(simplepublish.WithBlobStore("memory", memory.New()))
	assert.EqualError(t, err, "repository is required")

	_, err = simplepublish.New(simplepublish.WithRepository(repomemory.New()))
	assert.EqualError(t, err, "blob store is required")
}

func TestCreateContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.svc.CreateContent(ctx, createReq("Hello World"))
	require.NoError(t, err)

	assert.Equal(t, "hello-world", item.Slug)
	assert.Equal(t, "body text", item.Summary)
	assert.True(t, strings.HasPrefix(item.CoverKey, "content-images/"))
	assert.True(t, strings.HasSuffix(item.CoverKey, ".png"))
	assert.True(t, strings.HasPrefix(item.PDFKey, "content-pdfs/"))
	assert.Equal(t, 2, f.blobs.Len())

	view := f.svc.ContentView(item)
	require.NotNil(t, view.CoverURL)
	assert.Equal(t, "https://bucket.s3.us-east-1.amazonaws.com/"+item.CoverKey, *view.CoverURL)
	require.NotNil(t, view.PDFURL)

	second, err := f.svc.CreateContent(ctx, createReq("Hello World"))
	require.NoError(t, err)
	assert.Equal(t, "hello-world-1", second.Slug)

	third, err := f.svc.CreateContent(ctx, createReq("hello, world!"))
	require.NoError(t, err)
	assert.Equal(t, "hello-world-2", third.Slug)

	// other categories have their own namespace
	book := createReq("Hello World")
	book.Category = simplepublish.CategoryBook
	bookItem, err := f.svc.CreateContent(ctx, book)
	require.NoError(t, err)
	assert.Equal(t, "hello-world", bookItem.Slug)
}

func TestCreateContentDefaultsSummary(t *testing.T) {
	f := newFixture(t)
	req := createReq("Long")
	req.Content = strings.Repeat("é", 250)

	item, err := f.svc.CreateContent(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", simplepublish.SummaryLength), item.Summary)

	req = createReq("Explicit")
	req.Summary = "given"
	item, err = f.svc.CreateContent(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "given", item.Summary)
}

func TestCreateContentValidationPerformsNoWrites(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *simplepublish.CreateContentRequest)
	}{
		{"missing cover", func(r *simplepublish.CreateContentRequest) { r.Cover = nil }},
		{"missing pdf", func(r *simplepublish.CreateContentRequest) { r.PDF = nil }},
		{"blank title", func(r *simplepublish.CreateContentRequest) { r.Title = "   " }},
		{"unknown category", func(r *simplepublish.CreateContentRequest) { r.Category = "Recipe" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := createReq("Hello")
			tt.mutate(&req)

			_, err := f.svc.CreateContent(context.Background(), req)
			assert.ErrorIs(t, err, simplepublish.ErrValidation)
			assert.Zero(t, f.blobs.uploads)
			assert.Zero(t, f.blobs.Len())
		})
	}
}

func TestCreateContentConflictLeavesNoObjects(t *testing.T) {
	f := newFixture(t)
	f.store.createErr = simplepublish.ErrConflict

	_, err := f.svc.CreateContent(context.Background(), createReq("Race"))
	assert.ErrorIs(t, err, simplepublish.ErrConflict)
	assert.Equal(t, 2, f.blobs.uploads)
	assert.Equal(t, 2, f.blobs.deletes)
	assert.Zero(t, f.blobs.Len())
}

func TestCreateContentDocumentUploadFailureCompensatesCover(t *testing.T) {
	f := newFixture(t)
	f.blobs.failUpload[2] = errors.New("connection reset")

	_, err := f.svc.CreateContent(context.Background(), createReq("Half"))
	assert.ErrorIs(t, err, simplepublish.ErrStoreUnavailable)
	assert.Equal(t, 1, f.blobs.deletes)
	assert.Zero(t, f.blobs.Len())

	exists, err := f.store.SlugExists(context.Background(), simplepublish.CategoryArticle, "half")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreateContentCompensationFailureKeepsOriginalError(t *testing.T) {
	f := newFixture(t)
	f.store.createErr = simplepublish.ErrRepository
	f.blobs.deleteErr = errors.New("store offline")

	_, err := f.svc.CreateContent(context.Background(), createReq("Masked"))
	assert.ErrorIs(t, err, simplepublish.ErrRepository)
	assert.NotErrorIs(t, err, simplepublish.ErrStoreUnavailable)
	assert.Equal(t, 2, f.events.undoFails)
}

func TestUpdateContentReplacesCover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.svc.CreateContent(ctx, createReq("Original"))
	require.NoError(t, err)
	oldCover, oldPDF := item.CoverKey, item.PDFKey

	newTitle := "Renamed"
	updated, err := f.svc.UpdateContent(ctx, simplepublish.UpdateContentRequest{
		Category: simplepublish.CategoryArticle,
		ID:       item.ID,
		Title:    &newTitle,
		Cover:    file("new.jpg", "image/jpeg", "img2"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "original", updated.Slug, "slug stays stable")
	assert.NotEqual(t, oldCover, updated.CoverKey)
	assert.True(t, strings.HasSuffix(updated.CoverKey, ".jpg"))
	assert.Equal(t, oldPDF, updated.PDFKey)

	_, err = f.blobs.GetObjectMeta(ctx, oldCover)
	assert.ErrorIs(t, err, simplepublish.ErrNotFound, "old cover is deleted")
	_, err = f.blobs.GetObjectMeta(ctx, updated.CoverKey)
	assert.NoError(t, err)
	_, err = f.blobs.GetObjectMeta(ctx, oldPDF)
	assert.NoError(t, err)
}

func TestUpdateContentRepositoryFailureDeletesOnlyNewObjects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.svc.CreateContent(ctx, createReq("Stable"))
	require.NoError(t, err)
	f.store.updateErr = simplepublish.ErrRepository

	_, err = f.svc.UpdateContent(ctx, simplepublish.UpdateContentRequest{
		Category: simplepublish.CategoryArticle,
		ID:       item.ID,
		Cover:    file("c.png", "image/png", "img2"),
		PDF:      file("d.pdf", "application/pdf", "pdf2"),
	})
	assert.ErrorIs(t, err, simplepublish.ErrRepository)

	keys := f.blobs.Keys()
	assert.ElementsMatch(t, []string{item.CoverKey, item.PDFKey}, keys)

	reloaded, err := f.svc.GetContent(ctx, simplepublish.CategoryArticle, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.CoverKey, reloaded.CoverKey)
	assert.Equal(t, item.PDFKey, reloaded.PDFKey)
}

func TestUpdateContentOldObjectDeleteFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.svc.CreateContent(ctx, createReq("Sticky"))
	require.NoError(t, err)
	f.blobs.deleteErr = errors.New("permission denied")

	updated, err := f.svc.UpdateContent(ctx, simplepublish.UpdateContentRequest{
		Category: simplepublish.CategoryArticle,
		ID:       item.ID,
		PDF:      file("d.pdf", "application/pdf", "pdf2"),
	})
	require.NoError(t, err)
	assert.NotEqual(t, item.PDFKey, updated.PDFKey)
	assert.Equal(t, []string{item.PDFKey}, f.events.orphans)
}

func TestUpdateContentNotFoundAndNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateContent(ctx, simplepublish.UpdateContentRequest{
		Category: simplepublish.CategoryBook,
		ID:       99,
		Cover:    file("c.png", "image/png", "img"),
	})
	assert.ErrorIs(t, err, simplepublish.ErrNotFound)
	assert.Zero(t, f.blobs.uploads, "nothing is uploaded for a missing record")

	item, err := f.svc.CreateContent(ctx, createReq("Same"))
	require.NoError(t, err)
	same, err := f.svc.UpdateContent(ctx, simplepublish.UpdateContentRequest{
		Category: simplepublish.CategoryArticle,
		ID:       item.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, item.UpdatedAt, same.UpdatedAt)

	blank := " "
	_, err = f.svc.UpdateContent(ctx, simplepublish.UpdateContentRequest{
		Category: simplepublish.CategoryArticle,
		ID:       item.ID,
		Title:    &blank,
	})
	assert.ErrorIs(t, err, simplepublish.ErrValidation)
}

func TestDeleteContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.svc.CreateContent(ctx, createReq("Doomed"))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteContent(ctx, simplepublish.CategoryArticle, item.ID))
	assert.Zero(t, f.blobs.Len())
	assert.Equal(t, 2, f.blobs.deletes)

	_, err = f.svc.GetContentBySlug(ctx, simplepublish.CategoryArticle, "doomed")
	assert.ErrorIs(t, err, simplepublish.ErrNotFound)

	err = f.svc.DeleteContent(ctx, simplepublish.CategoryArticle, item.ID)
	assert.ErrorIs(t, err, simplepublish.ErrNotFound)
	assert.Equal(t, 2, f.blobs.deletes, "second delete never touches the store")
	assert.Equal(t, 1, f.store.deletes)
}

func TestDeleteContentToleratesMissingObjects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.svc.CreateContent(ctx, createReq("Half Gone"))
	require.NoError(t, err)
	require.NoError(t, f.blobs.Backend.Delete(ctx, item.CoverKey))

	require.NoError(t, f.svc.DeleteContent(ctx, simplepublish.CategoryArticle, item.ID))
	assert.Zero(t, f.blobs.Len())
	assert.Empty(t, f.events.orphans)
}

func TestListContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, title := range []string{"A", "B", "C"} {
		_, err := f.svc.CreateContent(ctx, createReq(title))
		require.NoError(t, err)
	}

	items, err := f.svc.ListContent(ctx, simplepublish.ListContentRequest{Category: simplepublish.CategoryArticle})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "c", items[0].Slug)

	_, err = f.svc.ListContent(ctx, simplepublish.ListContentRequest{Category: simplepublish.CategoryArticle, Limit: -1})
	assert.ErrorIs(t, err, simplepublish.ErrValidation)
}

func TestOperationsReportToEventSink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.svc.CreateContent(ctx, createReq("Events"))
	require.NoError(t, err)
	_, err = f.svc.UpdateContent(ctx, simplepublish.UpdateContentRequest{Category: simplepublish.CategoryArticle, ID: item.ID, Genre: &item.Genre})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteContent(ctx, simplepublish.CategoryArticle, item.ID))

	assert.Equal(t, []string{simplepublish.OpCreate, simplepublish.OpUpdate, simplepublish.OpDelete}, f.events.ops)
}

func TestContentErrorCarriesContext(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetContent(context.Background(), simplepublish.CategoryProduct, 7)
	var contentErr *simplepublish.ContentError
	require.ErrorAs(t, err, &contentErr)
	assert.Equal(t, simplepublish.CategoryProduct, contentErr.Category)
	assert.Equal(t, int64(7), contentErr.ID)
	assert.Equal(t, "get", contentErr.Op)
	assert.ErrorIs(t, err, simplepublish.ErrNotFound)
}
