package dto

import (
	"time"

	"videoDownloader/api/models"
)

type DownloadRequest struct {
	URL string `json:"url"`
	// Cookies is optional Netscape cookie text used for this request only.
	Cookies string `json:"cookies,omitempty"`
}

type DownloadResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

type TaskError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type TaskResponse struct {
	TaskID          string     `json:"task_id"`
	TraceID         string     `json:"trace_id,omitempty"`
	URL             string     `json:"url"`
	Status          string     `json:"status"`
	ProgressMessage string     `json:"progress_message,omitempty"`
	ResultURL       string     `json:"result_url,omitempty"`
	ThumbnailURL    string     `json:"thumbnail_url,omitempty"`
	Error           *TaskError `json:"error,omitempty"`
	CreatedAt       string     `json:"created_at"`
	UpdatedAt       string     `json:"updated_at"`
}

func FromTask(task *models.Task) *TaskResponse {
	resp := &TaskResponse{
		TaskID:          task.ID,
		TraceID:         task.TraceID,
		URL:             task.URL,
		Status:          string(task.Status),
		ProgressMessage: task.ProgressMessage,
		ResultURL:       task.ResultURL,
		ThumbnailURL:    task.ThumbnailURL,
		CreatedAt:       task.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       task.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if task.Error != nil {
		resp.Error = &TaskError{Kind: string(task.Error.Kind), Message: task.Error.Message}
	}
	return resp
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}
