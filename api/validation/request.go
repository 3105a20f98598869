package validation

import (
	"strings"

	"videoDownloader/api/dto"
)

// DownloadRequest trims the request in place. Only an empty URL is
// rejected here; malformed URLs fail later as invalid_url on the task.
func DownloadRequest(req *dto.DownloadRequest) error {
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		return ErrEmptyURL
	}
	return nil
}
