package api

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/simple-publish/pkg/simplepublish"
)

// ServeAsset streams an object from the configured blob store. It backs the
// public URLs of the memory and filesystem backends.
func (h *Handler) ServeAsset(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" || !fs.ValidPath(key) {
		h.writeError(w, r, simplepublish.ErrNotFound)
		return
	}

	meta, err := h.config.Assets.GetObjectMeta(r.Context(), key)
	if err != nil {
		h.writeError(w, r, assetError(err))
		return
	}

	body, err := h.config.Assets.Download(r.Context(), key)
	if err != nil {
		h.writeError(w, r, assetError(err))
		return
	}
	defer body.Close()

	if meta.ContentType != "" {
		w.Header().Set("Content-Type", meta.ContentType)
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if !renderable(meta.ContentType) {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": path.Base(key)}))
	}
	if meta.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}
	if meta.ETag != "" {
		w.Header().Set("ETag", `"`+meta.ETag+`"`)
	}
	if !meta.UpdatedAt.IsZero() {
		w.Header().Set("Last-Modified", meta.UpdatedAt.UTC().Format(http.TimeFormat))
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "asset stream interrupted", "key", key, "error", err)
	}
}

// renderable reports whether a browser may show the type without a filename
// hint: images and PDFs.
func renderable(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "image/") || mediaType == "application/pdf"
}

func assetError(err error) error {
	if errors.Is(err, simplepublish.ErrNotFound) {
		return simplepublish.ErrNotFound
	}
	return fmt.Errorf("%w: %w", simplepublish.ErrStoreUnavailable, err)
}
