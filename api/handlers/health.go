package handlers

import (
	"net/http"

	"videoDownloader/api/dto"
)

func Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, dto.HealthResponse{
		Status:  "OK",
		Message: "Video downloader API is running",
	})
}

func Root(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, dto.RootResponse{
			Message: "Video Downloader API",
			Version: version,
		})
	}
}

// Routes registers every endpoint on mux.
func Routes(mux *http.ServeMux, tasks *TaskHandler, cookies *CookieHandler, version string) {
	mux.HandleFunc("POST /api/download", tasks.Download)
	mux.HandleFunc("GET /api/status/{task_id}", tasks.Status)
	mux.HandleFunc("POST /api/upload-cookies", cookies.Upload)
	mux.HandleFunc("GET /api/test-cookies", cookies.Test)
	mux.HandleFunc("GET /health", Health)
	mux.HandleFunc("GET /{$}", Root(version))
}
