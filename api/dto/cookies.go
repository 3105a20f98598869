package dto

type CookieUploadResponse struct {
	Message     string `json:"message"`
	Path        string `json:"path"`
	CookieCount int    `json:"cookie_count"`
}

type CookieTestResponse struct {
	Valid       bool   `json:"valid"`
	Message     string `json:"message"`
	CookieCount int    `json:"cookie_count"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type RootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}
