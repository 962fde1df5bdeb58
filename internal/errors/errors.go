package errors

import (
    stderrors "errors"
    "fmt"
    "net/http"
)

type ErrorType string

const (
    ErrorTypeNotFound     ErrorType = "NOT_FOUND"
    ErrorTypeValidation   ErrorType = "VALIDATION"
    ErrorTypeInternal     ErrorType = "INTERNAL"
    ErrorTypeInvalidPath  ErrorType = "INVALID_PATH"
    ErrorTypeRegexCompile ErrorType = "REGEX_COMPILE"
    ErrorTypeIO           ErrorType = "IO"
    ErrorTypeTooLarge     ErrorType = "PAYLOAD_TOO_LARGE"
)

type Error struct {
    Type    ErrorType `json:"type"`
    Message string    `json:"message"`
    Code    int       `json:"code"`
    Details any       `json:"details,omitempty"`
    Cause   error     `json:"-"`
}

func (e *Error) Error() string {
    if e.Cause != nil {
        return fmt.Sprintf("%s: %v", e.Message, e.Cause)
    }
    return e.Message
}

func (e *Error) Unwrap() error {
    return e.Cause
}

// IsType reports whether any error in err's chain is an *Error of type t.
func IsType(err error, t ErrorType) bool {
    var e *Error
    if stderrors.As(err, &e) {
        return e.Type == t
    }
    return false
}

func NotFound(message string) *Error {
    return &Error{
        Type:    ErrorTypeNotFound,
        Message: message,
        Code:    http.StatusNotFound,
    }
}

func ValidationError(message string, details any) *Error {
    return &Error{
        Type:    ErrorTypeValidation,
        Message: message,
        Code:    http.StatusBadRequest,
        Details: details,
    }
}

func Internal(message string, cause error) *Error {
    return &Error{
        Type:    ErrorTypeInternal,
        Message: message,
        Code:    http.StatusInternalServerError,
        Cause:   cause,
    }
}

// InvalidPath reports a source path that yields no usable base name.
func InvalidPath(path string, reason string) *Error {
    return &Error{
        Type:    ErrorTypeInvalidPath,
        Message: fmt.Sprintf("invalid source path %q: %s", path, reason),
        Code:    http.StatusBadRequest,
        Details: path,
    }
}

func RegexCompile(pattern string, cause error) *Error {
    return &Error{
        Type:    ErrorTypeRegexCompile,
        Message: "compiling import pattern",
        Code:    http.StatusInternalServerError,
        Details: pattern,
        Cause:   cause,
    }
}

// IO wraps a filesystem failure with the operation that caused it.
func IO(message string, cause error) *Error {
    return &Error{
        Type:    ErrorTypeIO,
        Message: message,
        Code:    http.StatusInternalServerError,
        Cause:   cause,
    }
}

// PayloadTooLarge reports a request body over the configured limit.
func PayloadTooLarge(limit int64) *Error {
    return &Error{
        Type:    ErrorTypeTooLarge,
        Message: fmt.Sprintf("request body exceeds %d bytes", limit),
        Code:    http.StatusRequestEntityTooLarge,
        Details: limit,
    }
}
