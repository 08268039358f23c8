// Package cgierr defines the error type every stage of a CGI invocation
// reports through, together with the fixed status description table.
package cgierr

import (
	"errors"
	"fmt"
	"net/http"
)

// descriptions maps the status codes this program emits to the text used on
// the CGI Status line.
var descriptions = map[int]string{
	http.StatusOK:                      "OK",
	http.StatusCreated:                 "Created",
	http.StatusBadRequest:              "Bad Request",
	http.StatusNotFound:                "Not Found",
	http.StatusMethodNotAllowed:        "Method Not Allowed",
	http.StatusLengthRequired:          "Length Required",
	http.StatusRequestEntityTooLarge:   "Payload Too Large",
	http.StatusUnsupportedMediaType:    "Unsupported Media Type",
	http.StatusInternalServerError:     "Internal Server Error",
	http.StatusHTTPVersionNotSupported: "HTTP Version Not Supported",
}

const unknownDescription = "Unknown Error"

// Describe returns the status description for code, or a generic one when the
// code is not in the table.
func Describe(code int) string {
	if d, ok := descriptions[code]; ok {
		return d
	}
	return unknownDescription
}

// Error is a failure carrying the status code it should be reported with.
// Message is shown to the client; Err, when set, is the underlying cause and
// is only logged.
type Error struct {
	Code    int
	Message string
	Err     error
}

// New creates an Error.
func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error whose cause is err.
func Wrap(code int, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Description returns the status line text for the error's code.
func (e *Error) Description() string {
	return Describe(e.Code)
}

// Body returns the user-visible response body for the error.
func (e *Error) Body() string {
	return "Error: " + e.Message
}

// Internal is the error unanticipated faults are downgraded to.
func Internal() *Error {
	return New(http.StatusInternalServerError, "Internal Server Error")
}

// From extracts an *Error from err's chain. Errors that carry no status are
// reported as Internal.
func From(err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return Internal()
}

// BadRequest creates a 400 Error.
func BadRequest(message string) *Error { return New(http.StatusBadRequest, message) }

// NotFound creates a 404 Error.
func NotFound(message string) *Error { return New(http.StatusNotFound, message) }

func MethodNotAllowed() *Error {
	return New(http.StatusMethodNotAllowed, "Method Not Allowed")
}

func LengthRequired() *Error {
	return New(http.StatusLengthRequired, "Length Required")
}

func PayloadTooLarge() *Error {
	return New(http.StatusRequestEntityTooLarge, "Payload Too Large")
}

func UnsupportedMediaType() *Error {
	return New(http.StatusUnsupportedMediaType, "Unsupported Media Type")
}
