// Package repotest holds the behaviour every simplepublish.Store must share.
// Backend packages call Run from their own tests.
package repotest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-publish/pkg/simplepublish"
)

// Run exercises store against the repository contract. newStore must return
// an empty store.
func Run(t *testing.T, newStore func(t *testing.T) simplepublish.Store) {
	t.Run("CreateAndFind", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		item := newItem(simplepublish.CategoryBook, "Dune", "dune")
		item.CoverKey = "content-images/a.png"
		require.NoError(t, store.Create(ctx, item))
		assert.NotZero(t, item.ID)
		assert.False(t, item.CreatedAt.IsZero())

		byID, err := store.FindByID(ctx, simplepublish.CategoryBook, item.ID)
		require.NoError(t, err)
		assert.Equal(t, "Dune", byID.Title)
		assert.Equal(t, "content-images/a.png", byID.CoverKey)
		assert.Equal(t, "", byID.PDFKey)
		assert.Equal(t, simplepublish.CategoryBook, byID.Category)

		bySlug, err := store.FindBySlug(ctx, simplepublish.CategoryBook, "dune")
		require.NoError(t, err)
		assert.Equal(t, item.ID, bySlug.ID)
	})

	t.Run("NotFound", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.FindByID(ctx, simplepublish.CategoryArticle, 42)
		assert.ErrorIs(t, err, simplepublish.ErrNotFound)
		_, err = store.FindBySlug(ctx, simplepublish.CategoryArticle, "nope")
		assert.ErrorIs(t, err, simplepublish.ErrNotFound)
		_, err = store.Update(ctx, simplepublish.CategoryArticle, 42, simplepublish.ContentPatch{Title: ptr("x")})
		assert.ErrorIs(t, err, simplepublish.ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, simplepublish.CategoryArticle, 42), simplepublish.ErrNotFound)
	})

	t.Run("SlugUniquePerCategory", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Create(ctx, newItem(simplepublish.CategoryArticle, "Hello", "hello")))
		err := store.Create(ctx, newItem(simplepublish.CategoryArticle, "Hello again", "hello"))
		assert.ErrorIs(t, err, simplepublish.ErrConflict)

		// same slug in another category is fine
		require.NoError(t, store.Create(ctx, newItem(simplepublish.CategoryProduct, "Hello", "hello")))

		exists, err := store.SlugExists(ctx, simplepublish.CategoryArticle, "hello")
		require.NoError(t, err)
		assert.True(t, exists)
		exists, err = store.SlugExists(ctx, simplepublish.CategoryBook, "hello")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("UpdatePatchesOnlySetFields", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		item := newItem(simplepublish.CategoryProduct, "Lamp", "lamp")
		item.CoverKey = "content-images/old.png"
		item.PDFKey = "content-pdfs/old.pdf"
		require.NoError(t, store.Create(ctx, item))

		updated, err := store.Update(ctx, simplepublish.CategoryProduct, item.ID, simplepublish.ContentPatch{
			Genre:    ptr("lighting"),
			CoverKey: ptr("content-images/new.png"),
		})
		require.NoError(t, err)
		assert.Equal(t, "lighting", updated.Genre)
		assert.Equal(t, "Lamp", updated.Title)
		assert.Equal(t, "lamp", updated.Slug)
		assert.Equal(t, "content-images/new.png", updated.CoverKey)
		assert.Equal(t, "content-pdfs/old.pdf", updated.PDFKey)
		assert.False(t, updated.UpdatedAt.Before(item.UpdatedAt))

		reloaded, err := store.FindByID(ctx, simplepublish.CategoryProduct, item.ID)
		require.NoError(t, err)
		assert.Equal(t, "content-images/new.png", reloaded.CoverKey)
	})

	t.Run("DeleteFreesSlug", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		item := newItem(simplepublish.CategoryArticle, "Gone", "gone")
		require.NoError(t, store.Create(ctx, item))
		require.NoError(t, store.Delete(ctx, simplepublish.CategoryArticle, item.ID))

		_, err := store.FindBySlug(ctx, simplepublish.CategoryArticle, "gone")
		assert.ErrorIs(t, err, simplepublish.ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, simplepublish.CategoryArticle, item.ID), simplepublish.ErrNotFound)

		exists, err := store.SlugExists(ctx, simplepublish.CategoryArticle, "gone")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for _, slug := range []string{"one", "two", "three"} {
			require.NoError(t, store.Create(ctx, newItem(simplepublish.CategoryBook, slug, slug)))
		}
		require.NoError(t, store.Create(ctx, newItem(simplepublish.CategoryArticle, "other", "other")))

		items, err := store.List(ctx, simplepublish.CategoryBook, simplepublish.ListOptions{})
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, []string{"three", "two", "one"}, slugs(items))

		page, err := store.List(ctx, simplepublish.CategoryBook, simplepublish.ListOptions{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"two"}, slugs(page))

		empty, err := store.List(ctx, simplepublish.CategoryProduct, simplepublish.ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("ProfileSingleton", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.GetProfile(ctx)
		assert.ErrorIs(t, err, simplepublish.ErrNotFound)

		first, err := store.UpsertProfileAvatar(ctx, "avatars/user-avatar.png")
		require.NoError(t, err)
		assert.Equal(t, int64(simplepublish.ProfileID), first.ID)
		assert.Equal(t, "avatars/user-avatar.png", first.AvatarKey)

		second, err := store.UpsertProfileAvatar(ctx, "avatars/user-avatar.png")
		require.NoError(t, err)
		assert.Equal(t, int64(simplepublish.ProfileID), second.ID)
		assert.True(t, second.CreatedAt.Equal(first.CreatedAt))

		got, err := store.GetProfile(ctx)
		require.NoError(t, err)
		assert.Equal(t, "avatars/user-avatar.png", got.AvatarKey)
	})
}

func newItem(category simplepublish.Category, title, slug string) *simplepublish.ContentItem {
	return &simplepublish.ContentItem{
		Category: category,
		Title:    title,
		Slug:     slug,
		Author:   "author",
		Genre:    "genre",
		Summary:  "summary",
		Content:  "content",
	}
}

func slugs(items []*simplepublish.ContentItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Slug
	}
	return out
}

func ptr(s string) *string { return &s }
