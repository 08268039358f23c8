// Package response writes a model.Response to standard output in CGI framing.
package response

import (
	"bytes"
	"fmt"
	"io"

	"cgi-kvstore/internal/cgierr"
	"cgi-kvstore/internal/model"
)

const contentType = "text/plain; charset=utf-8"

// New builds a Response for code with the status text from the fixed table.
func New(code int, body string) model.Response {
	return model.Response{
		StatusCode:    code,
		StatusMessage: cgierr.Describe(code),
		Body:          []byte(body),
	}
}

// FromError builds the Response reporting err. Errors without a status become
// a generic 500.
func FromError(err error) model.Response {
	ce := cgierr.From(err)
	return model.Response{
		StatusCode:    ce.Code,
		StatusMessage: ce.Description(),
		Body:          []byte(ce.Body()),
	}
}

// Write serializes resp to w with a single Write call:
//
//	Status: <code> <description>\r\n
//	Content-Type: text/plain; charset=utf-8\r\n
//	Content-Length: <byte length of body>\r\n
//	\r\n
//	<body>
func Write(w io.Writer, resp model.Response) error {
	msg := resp.StatusMessage
	if msg == "" {
		msg = cgierr.Describe(resp.StatusCode)
	}

	var buf bytes.Buffer
	buf.Grow(96 + len(resp.Body))
	fmt.Fprintf(&buf, "Status: %d %s\r\n", resp.StatusCode, msg)
	fmt.Fprintf(&buf, "Content-Type: %s\r\n", contentType)
	fmt.Fprintf(&buf, "Content-Length: %d\r\n", len(resp.Body))
	buf.WriteString("\r\n")
	buf.Write(resp.Body)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}
