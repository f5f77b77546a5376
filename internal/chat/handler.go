package chat

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

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	if _, ok := r.Context().Value("user_id").(int64); !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.service.Answer(r.Context(), req)
	if err != nil {
		var svcErr *generator.ServiceError
		if errors.As(err, &svcErr) {
			writeJSON(w, http.StatusBadGateway, models.ErrorResponse{Error: "Answer service unavailable"})
			return
		}
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
