package cookies

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const netscapeHeader = "# Netscape HTTP Cookie File"

var (
	ErrNoCookies        = errors.New("no cookies file found")
	ErrInvalidFormat    = errors.New("invalid cookie format")
	ErrEmptyCookieInput = errors.New("cookie content is empty")
)

// Count validates Netscape cookie text and returns the number of cookie
// lines in it.
func Count(content string) (int, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return 0, ErrEmptyCookieInput
	}

	count := 0
	tabbed := false
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		count++
		if len(strings.Split(line, "\t")) >= 6 {
			tabbed = true
		}
	}

	lower := strings.ToLower(trimmed)
	known := strings.Contains(lower, "youtube.com") || strings.Contains(lower, "google.com")
	if !tabbed && !known && !strings.HasPrefix(trimmed, netscapeHeader) {
		return 0, ErrInvalidFormat
	}
	return count, nil
}

// Store keeps the shared cookies file that later jobs authenticate with.
type Store struct {
	mu   sync.RWMutex
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save validates content and atomically replaces the stored file.
func (s *Store) Save(content string) (int, error) {
	count, err := Count(content)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create cookies dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o600); err != nil {
		return 0, fmt.Errorf("write cookies: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("replace cookies: %w", err)
	}
	return count, nil
}

// Load returns the stored cookie text.
func (s *Store) Load() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoCookies
	}
	if err != nil {
		return "", fmt.Errorf("read cookies: %w", err)
	}
	return string(data), nil
}

// Path returns the stored file's location when one has been uploaded.
func (s *Store) Path() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, err := os.Stat(s.path)
	if err != nil || info.Size() == 0 {
		return "", false
	}
	return s.path, true
}

func (s *Store) Location() string {
	return s.path
}

// WriteTemp writes per-job cookie text into dir. The caller removes the
// file when the job ends.
func WriteTemp(dir, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyCookieInput
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	path := filepath.Join(dir, "cookies_"+uuid.New().String()+".txt")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("write job cookies: %w", err)
	}
	return path, nil
}
