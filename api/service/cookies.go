package service

import (
	"errors"

	"go.uber.org/zap"

	"videoDownloader/api/dto"
	"videoDownloader/worker/cookies"
)

type CookieService struct {
	store  *cookies.Store
	logger *zap.Logger
}

func NewCookieService(store *cookies.Store, logger *zap.Logger) *CookieService {
	return &CookieService{store: store, logger: logger}
}

// Upload validates and stores cookie text for every later job.
func (s *CookieService) Upload(content string) (*dto.CookieUploadResponse, error) {
	count, err := s.store.Save(content)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Cookies updated", zap.String("path", s.store.Location()), zap.Int("cookie_count", count))
	return &dto.CookieUploadResponse{
		Message:     "Cookies uploaded successfully",
		Path:        s.store.Location(),
		CookieCount: count,
	}, nil
}

// Test reports whether the stored cookies file is present and well formed.
func (s *CookieService) Test() (*dto.CookieTestResponse, error) {
	content, err := s.store.Load()
	if errors.Is(err, cookies.ErrNoCookies) {
		return &dto.CookieTestResponse{Valid: false, Message: "No cookies file found"}, nil
	}
	if err != nil {
		return nil, err
	}

	count, err := cookies.Count(content)
	if err != nil {
		return &dto.CookieTestResponse{Valid: false, Message: "Invalid cookie format"}, nil
	}
	return &dto.CookieTestResponse{
		Valid:       true,
		Message:     "Cookies file is valid",
		CookieCount: count,
	}, nil
}
