package submissions

import (
	"net/http"
	"strconv"

	"github.com/harborlight/beacon/pkg/audit"
	"github.com/harborlight/beacon/pkg/guard"
	"github.com/harborlight/beacon/pkg/httputil"
	"github.com/harborlight/beacon/pkg/observability"
)

const maxListLimit = 200

// Handler serves the submission endpoints.
type Handler struct {
	store    *Store
	recorder audit.Recorder
	logger   *observability.Logger
}

// NewHandler creates the submissions HTTP handler.
func NewHandler(store *Store, recorder audit.Recorder, logger *observability.Logger) *Handler {
	return &Handler{store: store, recorder: recorder, logger: logger}
}

type intakeRequest struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Region      string `json:"region"`
	District    string `json:"district"`
	Description string `json:"description"`
}

// Intake handles POST /submissions, the unauthenticated public form.
func (h *Handler) Intake(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	sub := &Submission{
		Type:        Type(req.Type),
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Region:      req.Region,
		District:    req.District,
		Description: req.Description,
	}
	if err := sub.Validate(); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.store.Create(r.Context(), sub); err != nil {
		h.logger.WithError(err).Error("failed to create submission")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, map[string]interface{}{"id": sub.ID})
}

// List handles GET /admin/submissions. The result is always narrowed
// to the caller's region unless they hold the top-scope role.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ac, ok := guard.FromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	typeFilter := Type(r.URL.Query().Get("type"))
	if typeFilter != "" && !typeFilter.Valid() {
		httputil.WriteBadRequest(w, "unrecognized submission type")
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

	list, err := h.store.List(r.Context(), f, typeFilter, limit, offset)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	total, err := h.store.Count(r.Context(), f, typeFilter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if list == nil {
		list = []*Submission{}
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"submissions": list,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
	})
}

type statusUpdateRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /admin/submissions/{id}/status. Only
// victim reports carry a status; anything else is rejected outright.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ac, ok := guard.FromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	rawID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "submission id must be numeric")
		return
	}

	var req statusUpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Status == "" {
		httputil.WriteBadRequest(w, "status is required")
		return
	}
	status, ok := ParseStatus(req.Status)
	if !ok {
		httputil.WriteBadRequest(w, "unrecognized status: "+req.Status)
		return
	}

	sub, err := h.store.UpdateStatus(r.Context(), id, status)
	if err == ErrNotFound {
		httputil.WriteNotFound(w, "submission not found")
		return
	}
	if err == ErrNotStatusBearing {
		// The attempt itself is privileged, so it lands in the trail
		// even though no row changed.
		h.recordStatusUpdate(r, ac, id, status, "rejected_not_status_bearing")
		httputil.WriteBadRequest(w, "submission type does not carry a status")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.recordStatusUpdate(r, ac, sub.ID, status, "applied")
	httputil.WriteSuccess(w, sub)
}

func (h *Handler) recordStatusUpdate(r *http.Request, ac *guard.AuthContext, id int64, status Status, outcome string) {
	h.recorder.Record(r.Context(), &audit.Entry{
		ActorID:    ac.Profile.ID,
		ActorEmail: ac.Profile.Email,
		Action:     audit.ActionSubmissionStatusUpdate,
		Metadata: map[string]interface{}{
			"submission_id": id,
			"status":        string(status),
			"outcome":       outcome,
		},
	})
}
