package models

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure reasons surfaced on a task.
type ErrorKind string

const (
	KindInvalidURL       ErrorKind = "invalid_url"
	KindAgeRestricted    ErrorKind = "age_restricted"
	KindLoginRequired    ErrorKind = "login_required"
	KindGeoBlocked       ErrorKind = "geo_blocked"
	KindUnavailable      ErrorKind = "unavailable"
	KindNetworkTimeout   ErrorKind = "network_timeout"
	KindValidationFailed ErrorKind = "validation_failed"
	KindConversionFailed ErrorKind = "conversion_failed"
	KindUploadFailed     ErrorKind = "upload_failed"
	KindUnknown          ErrorKind = "unknown"
)

// IsPermanent reports whether an extraction failure of this kind must not
// be retried.
func (k ErrorKind) IsPermanent() bool {
	switch k {
	case KindInvalidURL, KindAgeRestricted, KindLoginRequired, KindGeoBlocked, KindUnavailable:
		return true
	default:
		return false
	}
}

// TaskError is the user-visible failure recorded on a task.
type TaskError struct {
	Kind    ErrorKind
	Message string
}

// Failure is the classified error adapters return at their boundary.
type Failure struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func NewFailure(kind ErrorKind, message string, err error) *Failure {
	return &Failure{Kind: kind, Message: message, Err: err}
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// KindOf extracts the classification from err. Unclassified errors are
// KindUnknown.
func KindOf(err error) ErrorKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindUnknown
}

// ToTaskError converts err into the form stored on a task. fallback is used
// when err carries no classification of its own. Unknown failures always
// keep the underlying diagnostic text.
func ToTaskError(err error, fallback ErrorKind) *TaskError {
	if err == nil {
		return nil
	}
	var f *Failure
	if !errors.As(err, &f) {
		return &TaskError{Kind: fallback, Message: err.Error()}
	}
	msg := f.Message
	if f.Kind == KindUnknown && f.Err != nil {
		msg = fmt.Sprintf("%s: %v", f.Message, f.Err)
	}
	return &TaskError{Kind: f.Kind, Message: msg}
}
