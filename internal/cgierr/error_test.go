package cgierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "OK"},
		{201, "Created"},
		{400, "Bad Request"},
		{404, "Not Found"},
		{405, "Method Not Allowed"},
		{411, "Length Required"},
		{413, "Payload Too Large"},
		{415, "Unsupported Media Type"},
		{500, "Internal Server Error"},
		{505, "HTTP Version Not Supported"},
		{418, "Unknown Error"},
		{0, "Unknown Error"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			if got := Describe(tt.code); got != tt.want {
				t.Errorf("Describe(%d) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestError_Body(t *testing.T) {
	e := BadRequest("Bad Request: Invalid Content Length")
	if got, want := e.Body(), "Error: Bad Request: Invalid Content Length"; got != want {
		t.Errorf("Body() = %q, want %q", got, want)
	}
	if e.Description() != "Bad Request" {
		t.Errorf("Description() = %q, want %q", e.Description(), "Bad Request")
	}
}

func TestFrom(t *testing.T) {
	wrapped := fmt.Errorf("reading key: %w", NotFound("Not Found: no value for key 'x'"))
	if got := From(wrapped); got.Code != http.StatusNotFound {
		t.Errorf("From(wrapped).Code = %d, want %d", got.Code, http.StatusNotFound)
	}

	got := From(errors.New("disk on fire"))
	if got.Code != http.StatusInternalServerError {
		t.Errorf("From(plain).Code = %d, want %d", got.Code, http.StatusInternalServerError)
	}
	if got.Message != "Internal Server Error" {
		t.Errorf("From(plain).Message = %q, want generic message", got.Message)
	}
}

func TestWrap_Unwrap(t *testing.T) {
	cause := errors.New("permission denied")
	e := Wrap(http.StatusInternalServerError, "Internal Server Error", cause)

	if !errors.Is(e, cause) {
		t.Error("errors.Is(Wrap(...), cause) = false, want true")
	}
	if e.Body() != "Error: Internal Server Error" {
		t.Errorf("Body() = %q, cause must not leak into the body", e.Body())
	}
	if e.Error() != "Internal Server Error: permission denied" {
		t.Errorf("Error() = %q, want message and cause", e.Error())
	}
}
