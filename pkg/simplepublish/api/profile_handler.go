package api

import (
	"errors"
	"net/http"

	"github.com/tendant/simple-publish/pkg/simplepublish"
	"github.com/tendant/simple-publish/pkg/simplepublish/form"
)

// UploadAvatar handles POST /profile/avatar
func (h *Handler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	f, err := form.Parse(w, r, h.config.MaxUploadBytes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer f.Close()

	profile, err := h.service.UploadAvatar(r.Context(), f.FilePart(fileAvatar))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeData(w, r, http.StatusOK, h.service.ProfileView(profile))
}

// GetProfile handles GET /profile. Before the first avatar upload it answers
// with the default profile rather than 404.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.GetProfile(r.Context())
	if err != nil && !errors.Is(err, simplepublish.ErrNotFound) {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, h.service.ProfileView(profile))
}
