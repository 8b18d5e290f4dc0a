package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"agentplane/internal/auth"
	"agentplane/internal/store"
	"agentplane/pkg/api"

	"github.com/google/uuid"
)

// CreateOrg handles POST /orgs (Admin Only).
// It generates a new API key, stores it alongside its hash, and returns the
// raw key ONCE.
func (h *Handlers) CreateOrg(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.CreateOrgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		h.httpError(w, "Org name is required", http.StatusBadRequest)
		return
	}

	rawKey, err := auth.NewKey()
	if err != nil {
		h.httpError(w, "Entropy failure", http.StatusInternalServerError)
		return
	}

	org := &store.Org{
		ID:        uuid.New(),
		Name:      req.Name,
		CreatedAt: time.Now(),
	}
	key := &store.APIKey{
		ID:        uuid.New(),
		OrgID:     org.ID,
		Key:       rawKey,
		KeyHash:   auth.HashKey(rawKey),
		CreatedAt: time.Now(),
	}

	if err := h.store.CreateOrg(ctx, org, key); err != nil {
		h.httpError(w, "Failed to create org", http.StatusInternalServerError)
		return
	}

	// Return the raw key (this is the only time the caller sees it)
	resp := api.CreateOrgResponse{
		ID:     org.ID.String(),
		Name:   org.Name,
		ApiKey: rawKey,
	}
	h.respondJson(w, http.StatusCreated, resp)
}
