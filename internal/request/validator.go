// Package request turns a CGI environment snapshot and the input stream into
// validated request metadata and a request body.
package request

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"cgi-kvstore/internal/cgierr"
	"cgi-kvstore/internal/config"
	"cgi-kvstore/internal/model"
)

// Validator enforces the protocol constraints on the CGI meta-variables.
type Validator struct {
	maxContentLength int64
}

// NewValidator creates a Validator using the configured body size limit.
func NewValidator(cfg *config.Config) *Validator {
	return &Validator{maxContentLength: cfg.Request.MaxContentLength}
}

// Validate produces RequestMetadata from env. Rules are applied in order and
// the first violation is returned as a *cgierr.Error.
func (v *Validator) Validate(env model.Env) (model.RequestMetadata, error) {
	md := model.RequestMetadata{
		Method:      strings.ToUpper(strings.TrimSpace(env.RequestMethod)),
		ContentType: env.ContentType,
		PathInfo:    env.PathInfo,
		Chunked:     isChunked(env.TransferEncoding),
	}

	if md.Method != http.MethodGet && md.Method != http.MethodPost {
		return model.RequestMetadata{}, cgierr.MethodNotAllowed()
	}

	length, err := v.contentLength(md.Method, md.Chunked, env.ContentLength)
	if err != nil {
		return model.RequestMetadata{}, err
	}
	md.ContentLength = length

	if md.ContentLength < 0 {
		return model.RequestMetadata{}, cgierr.BadRequest("Bad Request: Invalid Content Length")
	}
	// The chunked ceiling is over the limit by construction; the body reader
	// enforces the limit on what actually arrives.
	if !md.Chunked && md.ContentLength > v.maxContentLength {
		return model.RequestMetadata{}, cgierr.PayloadTooLarge()
	}

	if md.ContentType != "" && !strings.HasPrefix(strings.ToLower(md.ContentType), "text/plain") {
		return model.RequestMetadata{}, cgierr.UnsupportedMediaType()
	}

	if md.PathInfo != "" && !strings.HasPrefix(md.PathInfo, "/") {
		return model.RequestMetadata{}, cgierr.BadRequest("Bad Request: Invalid path")
	}

	return md, nil
}

// contentLength resolves the body length. Bodiless methods ignore whatever was
// declared. A missing or empty CONTENT_LENGTH means zero.
func (v *Validator) contentLength(method string, chunked bool, declared string) (int64, error) {
	switch {
	case method == http.MethodGet || method == http.MethodDelete:
		return 0, nil
	case chunked:
		return v.maxContentLength + 1, nil
	}

	declared = strings.TrimSpace(declared)
	if declared == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(declared, 10, 64)
	if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(declared, "-") {
		return 0, cgierr.PayloadTooLarge()
	}
	if err != nil {
		return 0, cgierr.BadRequest("Bad Request: Invalid Content Length")
	}
	return n, nil
}

// isChunked reports whether the transfer-coding list names "chunked".
func isChunked(transferEncoding string) bool {
	for _, coding := range strings.Split(transferEncoding, ",") {
		if strings.EqualFold(strings.TrimSpace(coding), "chunked") {
			return true
		}
	}
	return false
}
