package validation

import "errors"

var (
	ErrInvalidFileType   = errors.New("file is not plain text")
	ErrFileTooLarge      = errors.New("file size exceeds limit")
	ErrExtensionMismatch = errors.New("only .txt files are supported")
	ErrEmptyFile         = errors.New("file is empty")
	ErrEmptyURL          = errors.New("url is required")
)
