package quiz

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mltutor/backend/internal/generator"
	"github.com/mltutor/backend/internal/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func getUserID(r *http.Request) (int64, bool) {
	uid, ok := r.Context().Value("user_id").(int64)
	return uid, ok
}

// ── Quiz Endpoints ──────────────────────────────────────

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	if _, ok := getUserID(r); !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req models.GenerateQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.service.Generate(r.Context(), req)
	if err != nil {
		var svcErr *generator.ServiceError
		switch {
		case errors.Is(err, ErrEmptyCorpus):
			writeJSON(w, http.StatusConflict, models.ErrorResponse{Error: err.Error()})
		case errors.As(err, &svcErr):
			writeJSON(w, http.StatusBadGateway, models.ErrorResponse{Error: "Question generation service unavailable"})
		default:
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req models.SubmitQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	grade, err := h.service.Submit(userID, req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, grade)
}

// Feedback takes a grade the client received from Submit and returns a
// model-written study diagnosis for it.
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	if _, ok := getUserID(r); !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var grade models.QuizGrade
	if err := json.NewDecoder(r.Body).Decode(&grade); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if grade.Total == 0 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Grade has no questions"})
		return
	}

	feedback := h.service.Feedback(r.Context(), &grade)
	writeJSON(w, http.StatusOK, map[string]string{"feedback": feedback})
}

func (h *Handler) ReportOverview(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	overview, err := h.service.Overview(userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to build report"})
		return
	}

	writeJSON(w, http.StatusOK, overview)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
