package request

import (
	"net/http"
	"testing"

	"cgi-kvstore/internal/cgierr"
	"cgi-kvstore/internal/config"
	"cgi-kvstore/internal/model"
)

func newTestValidator(max int64) *Validator {
	return NewValidator(&config.Config{Request: config.RequestConfig{MaxContentLength: max}})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		env         model.Env
		wantCode    int
		wantLength  int64
		wantChunked bool
	}{
		{"GET", model.Env{RequestMethod: "GET"}, 0, 0, false},
		{"GET ignores declared length", model.Env{RequestMethod: "GET", ContentLength: "999999"}, 0, 0, false},
		{"GET ignores malformed length", model.Env{RequestMethod: "GET", ContentLength: "x"}, 0, 0, false},
		{"GET ignores chunked", model.Env{RequestMethod: "GET", TransferEncoding: "chunked"}, 0, 0, true},
		{"POST with length", model.Env{RequestMethod: "POST", ContentLength: "5"}, 0, 5, false},
		{"POST length padded", model.Env{RequestMethod: "POST", ContentLength: " 5 "}, 0, 5, false},
		{"POST without length", model.Env{RequestMethod: "POST"}, 0, 0, false},
		{"POST at maximum", model.Env{RequestMethod: "POST", ContentLength: "100"}, 0, 100, false},
		{"POST chunked sentinel", model.Env{RequestMethod: "POST", TransferEncoding: "chunked"}, 0, 101, true},
		{"POST chunked in coding list", model.Env{RequestMethod: "POST", TransferEncoding: "gzip, CHUNKED"}, 0, 101, true},
		{"POST chunked ignores declared", model.Env{RequestMethod: "POST", ContentLength: "x", TransferEncoding: "chunked"}, 0, 101, true},
		{"lowercase method", model.Env{RequestMethod: "post", ContentLength: "1"}, 0, 1, false},
		{"DELETE", model.Env{RequestMethod: "DELETE"}, http.StatusMethodNotAllowed, 0, false},
		{"PUT", model.Env{RequestMethod: "PUT", ContentLength: "x"}, http.StatusMethodNotAllowed, 0, false},
		{"empty method", model.Env{}, http.StatusMethodNotAllowed, 0, false},
		{"malformed length", model.Env{RequestMethod: "POST", ContentLength: "12abc"}, http.StatusBadRequest, 0, false},
		{"negative length", model.Env{RequestMethod: "POST", ContentLength: "-5"}, http.StatusBadRequest, 0, false},
		{"over maximum", model.Env{RequestMethod: "POST", ContentLength: "101"}, http.StatusRequestEntityTooLarge, 0, false},
		{"length beyond int64", model.Env{RequestMethod: "POST", ContentLength: "99999999999999999999"}, http.StatusRequestEntityTooLarge, 0, false},
		{"negative length beyond int64", model.Env{RequestMethod: "POST", ContentLength: "-99999999999999999999"}, http.StatusBadRequest, 0, false},
		{"json content type", model.Env{RequestMethod: "POST", ContentLength: "2", ContentType: "application/json"}, http.StatusUnsupportedMediaType, 0, false},
		{"text/html content type", model.Env{RequestMethod: "GET", ContentType: "text/html"}, http.StatusUnsupportedMediaType, 0, false},
		{"uppercase text/plain", model.Env{RequestMethod: "POST", ContentLength: "2", ContentType: "TEXT/PLAIN"}, 0, 2, false},
		{"text/plain charset", model.Env{RequestMethod: "POST", ContentLength: "2", ContentType: "text/plain; charset=utf-8"}, 0, 2, false},
		{"relative path", model.Env{RequestMethod: "GET", PathInfo: "abc"}, http.StatusBadRequest, 0, false},
		{"absolute path", model.Env{RequestMethod: "GET", PathInfo: "/abc"}, 0, 0, false},
	}

	v := newTestValidator(100)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md, err := v.Validate(tt.env)
			if tt.wantCode != 0 {
				if err == nil {
					t.Fatalf("Validate() = %+v, want error %d", md, tt.wantCode)
				}
				if got := cgierr.From(err).Code; got != tt.wantCode {
					t.Fatalf("Validate() code = %d, want %d (err = %v)", got, tt.wantCode, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if md.ContentLength != tt.wantLength {
				t.Errorf("ContentLength = %d, want %d", md.ContentLength, tt.wantLength)
			}
			if md.Chunked != tt.wantChunked {
				t.Errorf("Chunked = %v, want %v", md.Chunked, tt.wantChunked)
			}
		})
	}
}

func TestValidate_MethodCheckedFirst(t *testing.T) {
	v := newTestValidator(100)

	// A disallowed method wins over every later rule.
	_, err := v.Validate(model.Env{
		RequestMethod: "PATCH",
		ContentLength: "-1",
		ContentType:   "application/json",
		PathInfo:      "relative",
	})
	if got := cgierr.From(err).Code; got != http.StatusMethodNotAllowed {
		t.Errorf("code = %d, want %d", got, http.StatusMethodNotAllowed)
	}
}

func TestValidate_KeepsFields(t *testing.T) {
	v := newTestValidator(100)

	md, err := v.Validate(model.Env{
		RequestMethod: "POST",
		ContentLength: "5",
		ContentType:   "text/plain",
		PathInfo:      "/abc123",
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	want := model.RequestMetadata{
		Method:        "POST",
		ContentLength: 5,
		ContentType:   "text/plain",
		PathInfo:      "/abc123",
	}
	if md != want {
		t.Errorf("Validate() = %+v, want %+v", md, want)
	}
	if !md.HasBody() {
		t.Error("HasBody() = false, want true")
	}
}

func TestIsChunked(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"chunked", true},
		{"Chunked", true},
		{" chunked ", true},
		{"gzip, chunked", true},
		{"gzip", false},
		{"notchunked", false},
	}

	for _, tt := range tests {
		if got := isChunked(tt.in); got != tt.want {
			t.Errorf("isChunked(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
