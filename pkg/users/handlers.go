package users

import (
	"errors"
	"net/http"

	"github.com/harborlight/beacon/pkg/guard"
	"github.com/harborlight/beacon/pkg/httputil"
	"github.com/harborlight/beacon/pkg/identity"
	"github.com/harborlight/beacon/pkg/observability"
	"github.com/harborlight/beacon/pkg/profiles"
)

const maxListLimit = 200

// Handler serves the user management endpoints. The router restricts
// them to the top-scope role.
type Handler struct {
	service *Service
	logger  *observability.Logger
}

// NewHandler creates the users HTTP handler.
func NewHandler(service *Service, logger *observability.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Create handles POST /admin/users. Success answers 200 with the new
// account's id and email; auth backend failures relay the backend's
// status and message.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ac, ok := guard.FromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req CreateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.service.Create(r.Context(), ac.Profile, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

type updateRequest struct {
	Role   string  `json:"role"`
	Region *string `json:"region"`
}

// Update handles PATCH /admin/users/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ac, ok := guard.FromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	userID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req updateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	updated, err := h.service.Update(r.Context(), ac.Profile, userID, req.Role, req.Region)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, updated)
}

// Delete handles DELETE /admin/users/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ac, ok := guard.FromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	userID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), ac.Profile, userID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// List handles GET /admin/users.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ac, ok := guard.FromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	limit := httputil.ParseQueryInt(r, "limit", 50)
	if limit < 1 || limit > maxListLimit {
		limit = 50
	}
	offset := httputil.ParseQueryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	f := ac.Scope(r.URL.Query().Get("search"))
	list, total, err := h.service.List(r.Context(), f, limit, offset)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if list == nil {
		list = []*profiles.Profile{}
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"users":  list,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// writeServiceError maps service failures onto the response contract:
// 400 for validation, 404 for unknown users, 500 for a missing
// service-role key, the backend's own status for backend rejections,
// and 500 for everything else.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		httputil.WriteBadRequest(w, validationErr.Message)
		return
	}
	if errors.Is(err, identity.ErrNoServiceKey) {
		httputil.WriteServiceMisconfigured(w)
		return
	}
	var backendErr *identity.BackendError
	if errors.As(err, &backendErr) {
		httputil.WriteStatusPassthrough(w, backendErr.Status, backendErr.Message)
		return
	}
	if errors.Is(err, profiles.ErrNotFound) {
		httputil.WriteNotFound(w, "user not found")
		return
	}

	h.logger.WithError(err).Error("user management operation failed")
	httputil.WriteInternalError(w, err)
}
