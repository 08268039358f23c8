// Package model defines shared types for a CGI invocation.
package model

import (
	"os"
)

// CGI meta-variables read from the process environment.
const (
	EnvRequestMethod    = "REQUEST_METHOD"
	EnvContentLength    = "CONTENT_LENGTH"
	EnvContentType      = "CONTENT_TYPE"
	EnvPathInfo         = "PATH_INFO"
	EnvTransferEncoding = "HTTP_TRANSFER_ENCODING"

	// EnvGatewayInterface is set by the web server for every CGI invocation.
	EnvGatewayInterface = "GATEWAY_INTERFACE"
)

// Env is an immutable snapshot of the CGI meta-variables for one request.
type Env struct {
	RequestMethod    string
	ContentLength    string
	ContentType      string
	PathInfo         string
	TransferEncoding string
}

// EnvFromLookup builds an Env from a lookup function such as os.Getenv.
func EnvFromLookup(lookup func(string) string) Env {
	return Env{
		RequestMethod:    lookup(EnvRequestMethod),
		ContentLength:    lookup(EnvContentLength),
		ContentType:      lookup(EnvContentType),
		PathInfo:         lookup(EnvPathInfo),
		TransferEncoding: lookup(EnvTransferEncoding),
	}
}

// EnvFromOS snapshots the current process environment.
func EnvFromOS() Env {
	return EnvFromLookup(os.Getenv)
}

// RequestMetadata is the validated view of a request's headers. It is only
// produced by the request validator and never modified afterwards.
type RequestMetadata struct {
	Method        string
	ContentLength int64
	ContentType   string
	PathInfo      string
	// Chunked reports a chunked transfer-encoding signal. ContentLength is then
	// a ceiling one past the configured maximum, not an exact byte count.
	Chunked bool
}

// HasBody reports whether a body should be read from the input stream.
func (m RequestMetadata) HasBody() bool {
	return m.Method == "POST" && m.ContentLength > 0
}

// Response is the outcome of one invocation, written exactly once.
type Response struct {
	StatusCode    int
	StatusMessage string
	Body          []byte
}
