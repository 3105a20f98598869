package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"videoDownloader/api/dto"
	"videoDownloader/api/middleware"
	"videoDownloader/api/repository"
	"videoDownloader/api/service"
	"videoDownloader/api/validation"
)

const maxRequestBody = 1 << 20

type TaskService interface {
	CreateTask(ctx context.Context, traceID string, req *dto.DownloadRequest) (*dto.DownloadResponse, error)
	GetTaskStatus(ctx context.Context, taskID string) (*dto.TaskResponse, error)
}

type TaskHandler struct {
	service TaskService
	logger  *zap.Logger
}

func NewTaskHandler(service TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service: service,
		logger:  logger,
	}
}

// Download accepts a URL and answers 202 before any work starts.
func (h *TaskHandler) Download(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	var req dto.DownloadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		handleError(h.logger, w, "Invalid request body", err, traceID, http.StatusBadRequest)
		return
	}
	if err := validation.DownloadRequest(&req); err != nil {
		handleError(h.logger, w, "URL is required", err, traceID, http.StatusBadRequest)
		return
	}

	resp, err := h.service.CreateTask(r.Context(), traceID, &req)
	if err != nil {
		if errors.Is(err, service.ErrShuttingDown) {
			handleError(h.logger, w, "Service is shutting down", err, traceID, http.StatusServiceUnavailable)
			return
		}
		handleError(h.logger, w, "Failed to create task", err, traceID, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusAccepted, resp)
}

func (h *TaskHandler) Status(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	taskID := r.PathValue("task_id")
	if taskID == "" {
		handleError(h.logger, w, "Task ID is required", nil, traceID, http.StatusBadRequest)
		return
	}

	resp, err := h.service.GetTaskStatus(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			handleError(h.logger, w, "Task not found", err, traceID, http.StatusNotFound)
			return
		}
		handleError(h.logger, w, "Failed to get task status", err, traceID, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}
