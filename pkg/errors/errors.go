package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork       ErrorType = "network"
	ErrorTypeHTTPStatus    ErrorType = "http_status"
	ErrorTypeDecode        ErrorType = "decode"
	ErrorTypeFilesystem    ErrorType = "filesystem"
	ErrorTypeConfiguration ErrorType = "configuration"
)

// Kind narrows a network or filesystem error down further
type Kind string

const (
	KindNone             Kind = ""
	KindTimeout          Kind = "timeout"
	KindConnectionFailed Kind = "connection_failed"
	KindOutputRoot       Kind = "output_root"
)

// Error represents a typed failure with optional HTTP status code and cause
type Error struct {
	Type    ErrorType
	Kind    Kind
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Type)
	if e.Kind != KindNone {
		msg += "/" + string(e.Kind)
	}
	if e.Code != 0 {
		msg = fmt.Sprintf("%s error (code %d): %s", msg, e.Code, e.Message)
	} else {
		msg = fmt.Sprintf("%s error: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given type
func New(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given type that wraps err
func Wrap(t ErrorType, err error, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Err: err}
}

// HTTPStatus returns the error used for non-2xx responses
func HTTPStatus(code int, url string) *Error {
	return &Error{
		Type:    ErrorTypeHTTPStatus,
		Message: fmt.Sprintf("unexpected status for %s", url),
		Code:    code,
	}
}

// Network classifies a transport-level failure as timeout or connection failure
func Network(err error, url string) *Error {
	kind := KindConnectionFailed
	var netErr net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &Error{
		Type:    ErrorTypeNetwork,
		Kind:    kind,
		Message: fmt.Sprintf("request to %s failed", url),
		Err:     err,
	}
}

// TypeOf returns the ErrorType carried by err, or "" if err is untyped
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ""
}

// IsType reports whether err carries the given type
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// IsRetryable reports whether an operation that failed with err may succeed when repeated.
// Non-2xx responses are never retried: the content is absent or blocked.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) {
		return false
	}

	var e *Error
	if stderrors.As(err, &e) {
		switch e.Type {
		case ErrorTypeNetwork:
			return true
		case ErrorTypeFilesystem:
			return e.Kind != KindOutputRoot && IsTransientFS(e.Err)
		default:
			return false
		}
	}
	return false
}

// IsTransientFS reports whether a filesystem error might go away on a second attempt,
// e.g. a parent directory removed or created by someone else between calls.
func IsTransientFS(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, os.ErrPermission) || stderrors.Is(err, syscall.EROFS) || stderrors.Is(err, syscall.ENOSPC) {
		return false
	}
	return stderrors.Is(err, os.ErrNotExist) || stderrors.Is(err, os.ErrExist) ||
		stderrors.Is(err, syscall.EINTR) || stderrors.Is(err, syscall.EAGAIN) || stderrors.Is(err, syscall.EBUSY)
}

// IsFatal reports whether err must abort the whole run
func IsFatal(err error) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	return e.Type == ErrorTypeConfiguration || (e.Type == ErrorTypeFilesystem && e.Kind == KindOutputRoot)
}
