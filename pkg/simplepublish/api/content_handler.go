package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/simple-publish/pkg/simplepublish"
	"github.com/tendant/simple-publish/pkg/simplepublish/form"
)

// Multipart field names.
const (
	fieldCategory = "category"
	fieldTitle    = "title"
	fieldAuthor   = "author"
	fieldGenre    = "genre"
	fieldSummary  = "summary"
	fieldContent  = "content"
	fileCover     = "coverImage"
	filePDF       = "pdfFile"
	fileAvatar    = "avatar"
)

// maxListLimit caps the page size of list requests.
const maxListLimit = 100

// CreateContent handles POST /upload
func (h *Handler) CreateContent(w http.ResponseWriter, r *http.Request) {
	f, err := form.Parse(w, r, h.config.MaxUploadBytes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer f.Close()

	rawCategory, _ := f.Value(fieldCategory)
	category, err := simplepublish.ParseCategory(rawCategory)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	title, _ := f.Value(fieldTitle)
	author, _ := f.Value(fieldAuthor)
	genre, _ := f.Value(fieldGenre)
	summary, _ := f.Value(fieldSummary)
	content, _ := f.Value(fieldContent)

	item, err := h.service.CreateContent(r.Context(), simplepublish.CreateContentRequest{
		Category: category,
		Title:    title,
		Author:   author,
		Genre:    genre,
		Summary:  summary,
		Content:  content,
		Cover:    f.FilePart(fileCover),
		PDF:      f.FilePart(filePDF),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeData(w, r, http.StatusCreated, h.service.ContentView(item))
}

// UpdateContent handles PUT /content/{category}/{id}
func (h *Handler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	category, id, err := pathItem(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	f, err := form.Parse(w, r, h.config.MaxUploadBytes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer f.Close()

	item, err := h.service.UpdateContent(r.Context(), simplepublish.UpdateContentRequest{
		Category: category,
		ID:       id,
		Title:    f.Optional(fieldTitle),
		Author:   f.Optional(fieldAuthor),
		Genre:    f.Optional(fieldGenre),
		Summary:  f.Optional(fieldSummary),
		Content:  f.Optional(fieldContent),
		Cover:    f.FilePart(fileCover),
		PDF:      f.FilePart(filePDF),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeData(w, r, http.StatusOK, h.service.ContentView(item))
}

// DeleteContent handles DELETE /content/{category}/{id}
func (h *Handler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	category, id, err := pathItem(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.service.DeleteContent(r.Context(), category, id); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, Envelope{Success: true})
}

// GetContent handles GET /content/{category}/{id}
func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	category, id, err := pathItem(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	item, err := h.service.GetContent(r.Context(), category, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeData(w, r, http.StatusOK, h.service.ContentView(item))
}

// GetContentBySlug handles GET /content/{category}/slug/{slug}
func (h *Handler) GetContentBySlug(w http.ResponseWriter, r *http.Request) {
	category, err := simplepublish.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	item, err := h.service.GetContentBySlug(r.Context(), category, chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeData(w, r, http.StatusOK, h.service.ContentView(item))
}

// ListContent handles GET /content/{category}
func (h *Handler) ListContent(w http.ResponseWriter, r *http.Request) {
	category, err := simplepublish.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	limit, err := queryInt(r, "limit", maxListLimit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items, err := h.service.ListContent(r.Context(), simplepublish.ListContentRequest{
		Category: category,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	views := make([]simplepublish.ContentItemView, 0, len(items))
	for _, item := range items {
		views = append(views, h.service.ContentView(item))
	}
	writeData(w, r, http.StatusOK, views)
}

func pathItem(r *http.Request) (simplepublish.Category, int64, error) {
	category, err := simplepublish.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		return "", 0, err
	}
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, simplepublish.Validationf("invalid id %q", raw)
	}
	return category, id, nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, simplepublish.Validationf("invalid %s %q", name, raw)
	}
	return n, nil
}
