package httpapi

import (
	"encoding/json"
	"net/http"

	"cpted-sync/internal/domain"
	"cpted-sync/internal/service"

	"go.uber.org/zap"
)

// AssessmentsHandler serves the metadata half of the sync boundary:
// POST /sync, GET /assessments, GET /assessments/{id}.
type AssessmentsHandler struct {
	svc    *service.SyncService
	logger *zap.Logger
}

func NewAssessmentsHandler(svc *service.SyncService, logger *zap.Logger) *AssessmentsHandler {
	return &AssessmentsHandler{svc: svc, logger: logger}
}

// Sync handles POST /sync: one assessment plus its full child sets, applied
// in a single transaction with server-side score recomputation.
func (h *AssessmentsHandler) Sync(w http.ResponseWriter, req *http.Request) {
	var payload domain.SyncPayload
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid sync payload: "+err.Error())
		return
	}

	res, err := h.svc.ApplySync(req.Context(), &payload)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// List handles GET /assessments.
func (h *AssessmentsHandler) List(w http.ResponseWriter, req *http.Request) {
	summaries, err := h.svc.ListAssessments(req.Context())
	if err != nil {
		h.logger.Error("assessment listing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list assessments")
		return
	}
	if summaries == nil {
		summaries = []domain.AssessmentSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// Get handles GET /assessments/{id}: the full representation in one
// response so a pull sees a consistent snapshot.
func (h *AssessmentsHandler) Get(w http.ResponseWriter, req *http.Request, id string) {
	detail, err := h.svc.GetAssessment(req.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
