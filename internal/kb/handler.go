package kb

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/mltutor/backend/internal/models"
)

// Upload size cap. Textbook PDFs run large.
const maxUploadBytes = 100 << 20

type Handler struct {
	worker    *Worker
	tasks     *TaskStore
	versions  *VersionStore
	uploadDir string
}

func NewHandler(worker *Worker, tasks *TaskStore, versions *VersionStore, uploadDir string) *Handler {
	return &Handler{worker: worker, tasks: tasks, versions: versions, uploadDir: uploadDir}
}

// ── Document Endpoints ──────────────────────────────────

// Upload accepts a PDF, stores it, and queues a background build. The
// response carries the task id to poll.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if _, ok := getUserID(r); !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Missing file field"})
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Only PDF documents are supported"})
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		log.Error().Err(err).Msg("failed to create upload directory")
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to store upload"})
		return
	}

	taskID := uuid.NewString()
	savedPath := filepath.Join(h.uploadDir, taskID+"_"+filename)
	dst, err := os.Create(savedPath)
	if err != nil {
		log.Error().Err(err).Str("path", savedPath).Msg("failed to create upload file")
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to store upload"})
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(savedPath)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to store upload"})
		return
	}
	dst.Close()

	task := &models.BuildTask{
		ID:       taskID,
		Filename: filename,
		Source:   filename,
		FilePath: savedPath,
	}
	if err := h.worker.Submit(task); err != nil {
		os.Remove(savedPath)
		if errors.Is(err, ErrQueueFull) {
			writeJSON(w, http.StatusServiceUnavailable, models.ErrorResponse{Error: err.Error()})
			return
		}
		log.Error().Err(err).Msg("failed to submit build task")
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to queue document"})
		return
	}

	writeJSON(w, http.StatusAccepted, models.UploadResponse{
		TaskID:   task.ID,
		Filename: task.Filename,
		Status:   task.Status,
		Message:  "文档已接收，正在后台处理",
	})
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	if _, ok := getUserID(r); !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	taskID := mux.Vars(r)["id"]
	task, err := h.tasks.Get(taskID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to load task"})
		return
	}
	if task == nil {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Task not found"})
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	if _, ok := getUserID(r); !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	versions, err := h.versions.List()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to load versions"})
		return
	}
	if versions == nil {
		versions = []models.KBVersion{}
	}

	writeJSON(w, http.StatusOK, versions)
}

func getUserID(r *http.Request) (int64, bool) {
	uid, ok := r.Context().Value("user_id").(int64)
	return uid, ok
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
