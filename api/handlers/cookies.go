package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"videoDownloader/api/dto"
	"videoDownloader/api/middleware"
	"videoDownloader/api/validation"
	"videoDownloader/worker/cookies"
)

type CookieService interface {
	Upload(content string) (*dto.CookieUploadResponse, error)
	Test() (*dto.CookieTestResponse, error)
}

type CookieHandler struct {
	service  CookieService
	maxBytes int64
	logger   *zap.Logger
}

func NewCookieHandler(service CookieService, maxBytes int64, logger *zap.Logger) *CookieHandler {
	return &CookieHandler{
		service:  service,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

func (h *CookieHandler) Upload(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+maxRequestBody)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		handleError(h.logger, w, "Failed to parse form", err, traceID, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		handleError(h.logger, w, "Failed to get file", err, traceID, http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, err := validation.ReadCookieFile(file, header, h.maxBytes)
	if err != nil {
		handleError(h.logger, w, err.Error(), err, traceID, http.StatusBadRequest)
		return
	}

	resp, err := h.service.Upload(content)
	if err != nil {
		if errors.Is(err, cookies.ErrInvalidFormat) || errors.Is(err, cookies.ErrEmptyCookieInput) {
			handleError(h.logger, w, "Invalid cookie format", err, traceID, http.StatusBadRequest)
			return
		}
		handleError(h.logger, w, "Failed to save cookies", err, traceID, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *CookieHandler) Test(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	resp, err := h.service.Test()
	if err != nil {
		handleError(h.logger, w, "Failed to read cookies", err, traceID, http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
