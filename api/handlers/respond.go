package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"videoDownloader/api/dto"
)

func handleError(logger *zap.Logger, w http.ResponseWriter, message string, err error, traceID string, status int) {
	log := logger.Warn
	if status >= http.StatusInternalServerError {
		log = logger.Error
	}
	log(message,
		zap.String("trace_id", traceID),
		zap.Int("status", status),
		zap.Error(err),
	)

	respondJSON(w, status, dto.ErrorResponse{
		Error:   message,
		TraceID: traceID,
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
