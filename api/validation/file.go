package validation

import (
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/encoding/charmap"
)

// ReadCookieFile reads an uploaded cookies file and returns its text. The
// file must be a .txt of at most maxBytes whose content sniffs as text.
func ReadCookieFile(file multipart.File, header *multipart.FileHeader, maxBytes int64) (string, error) {
	if !strings.EqualFold(filepath.Ext(header.Filename), ".txt") {
		return "", ErrExtensionMismatch
	}
	if header.Size > maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrFileTooLarge, header.Size)
	}

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return "", fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, maxBytes)
	}
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	if !isText(mimetype.Detect(data)) {
		return "", ErrInvalidFileType
	}

	return DecodeText(data), nil
}

// DecodeText reads data as UTF-8, falling back to Latin-1 for files saved
// by older browser extensions.
func DecodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "")
	}
	return string(decoded)
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
