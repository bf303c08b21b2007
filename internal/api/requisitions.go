package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/zanvidmar/zahtevek/internal/model"
	"github.com/zanvidmar/zahtevek/internal/store"
)

// RequisitionsHandler handles the requisition lifecycle endpoints.
type RequisitionsHandler struct {
	DB *sql.DB
}

type createRequisitionRequest struct {
	Lines []store.LineInput `json:"lines"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// Create handles POST /api/requisitions. Any authenticated actor may
// submit; all line errors come back together in one response.
func (h *RequisitionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req createRequisitionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	requisition, err := store.CreateRequisition(r.Context(), h.DB, claims.UserID, req.Lines)
	if err != nil {
		storeError(w, err)
		return
	}

	slog.Info("requisition created", "requisition", requisition.ID,
		"requester", claims.Username, "lines", len(requisition.Lines))
	jsonResponse(w, http.StatusCreated, requisition)
}

// ListMine handles GET /api/requisitions: the caller's own history,
// newest-first, with optional status/range/search filters.
func (h *RequisitionsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	filter := filterFromQuery(r)

	reqs, err := store.ListRequisitionsByRequester(r.Context(), h.DB, claims.UserID, filter)
	if err != nil {
		storeError(w, err)
		return
	}
	if reqs == nil {
		reqs = []model.Requisition{}
	}
	jsonResponse(w, http.StatusOK, reqs)
}

// ListAll handles GET /api/requisitions/all (admin view). Cancelled
// requisitions are excluded unless include_cancelled=true or the status
// filter names them explicitly.
func (h *RequisitionsHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r)
	filter.IncludeCancelled = r.URL.Query().Get("include_cancelled") == "true"

	reqs, err := store.ListRequisitions(r.Context(), h.DB, filter)
	if err != nil {
		storeError(w, err)
		return
	}
	if reqs == nil {
		reqs = []model.Requisition{}
	}
	jsonResponse(w, http.StatusOK, reqs)
}

// Stats handles GET /api/requisitions/stats: the caller's per-status counts.
func (h *RequisitionsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	counts, err := store.CountRequisitionsByStatus(r.Context(), h.DB, claims.UserID)
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, counts)
}

// Get handles GET /api/requisitions/{id}. Admins see everything; other
// actors only their own requisitions (404 otherwise, never 403, to avoid
// leaking existence).
func (h *RequisitionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid requisition id")
		return
	}

	requisition, err := store.GetRequisition(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	if requisition == nil || (claims.Role != model.RoleAdmin && requisition.RequesterID != claims.UserID) {
		jsonError(w, http.StatusNotFound, "not found")
		return
	}

	jsonResponse(w, http.StatusOK, requisition)
}

// Approve handles PATCH /api/requisitions/{id}/approve (admin).
func (h *RequisitionsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid requisition id")
		return
	}

	claims := GetClaims(r.Context())
	requisition, err := store.ApproveRequisition(r.Context(), h.DB, id, claims.UserID)
	if err != nil {
		storeError(w, err)
		return
	}

	slog.Info("requisition approved", "requisition", requisition.ID, "admin", claims.Username)
	jsonResponse(w, http.StatusOK, requisition)
}

// Reject handles PATCH /api/requisitions/{id}/reject (admin).
func (h *RequisitionsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid requisition id")
		return
	}

	var req rejectRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	requisition, err := store.RejectRequisition(r.Context(), h.DB, id, claims.UserID, req.Reason)
	if err != nil {
		storeError(w, err)
		return
	}

	slog.Info("requisition rejected", "requisition", requisition.ID,
		"admin", claims.Username, "reason", requisition.RejectionReason)
	jsonResponse(w, http.StatusOK, requisition)
}

// Fulfill handles PATCH /api/requisitions/{id}/fulfill (admin). This is
// the one place stock is actually debited; an insufficient line fails the
// whole call and leaves the requisition approved.
func (h *RequisitionsHandler) Fulfill(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid requisition id")
		return
	}

	claims := GetClaims(r.Context())
	requisition, err := store.FulfillRequisition(r.Context(), h.DB, id, claims.UserID)
	if err != nil {
		storeError(w, err)
		return
	}

	slog.Info("requisition fulfilled", "requisition", requisition.ID, "admin", claims.Username)
	jsonResponse(w, http.StatusOK, requisition)
}

// Cancel handles PATCH /api/requisitions/{id}/cancel (owning actor).
func (h *RequisitionsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid requisition id")
		return
	}

	claims := GetClaims(r.Context())
	requisition, err := store.CancelRequisition(r.Context(), h.DB, id, claims.UserID)
	if err != nil {
		storeError(w, err)
		return
	}

	slog.Info("requisition cancelled", "requisition", requisition.ID, "requester", claims.Username)
	jsonResponse(w, http.StatusOK, requisition)
}

// filterFromQuery builds a requisition filter from common query params.
func filterFromQuery(r *http.Request) store.RequisitionFilter {
	q := r.URL.Query()
	return store.RequisitionFilter{
		Status:    q.Get("status"),
		DateRange: q.Get("range"),
		Search:    q.Get("search"),
	}
}
