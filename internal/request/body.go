package request

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"cgi-kvstore/internal/cgierr"
	"cgi-kvstore/internal/config"
	"cgi-kvstore/internal/model"
)

// BodyReader ingests the request body from the CGI input stream.
type BodyReader struct {
	chunkSize        int
	maxContentLength int64
	logger           *slog.Logger
}

const defaultChunkSize = 4096

// NewBodyReader creates a BodyReader.
func NewBodyReader(cfg *config.Config, logger *slog.Logger) *BodyReader {
	chunkSize := cfg.Request.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &BodyReader{
		chunkSize:        chunkSize,
		maxContentLength: cfg.Request.MaxContentLength,
		logger:           logger.With("component", "body_reader"),
	}
}

// Read consumes the body described by md from r, at most one chunk per read.
// Requests without a body yield "". The whole body is retained.
//
// Outside chunked mode the stream must deliver exactly md.ContentLength bytes.
// In chunked mode whatever arrives before end of stream is accepted, up to the
// configured maximum. Invalid UTF-8 is replaced, never rejected.
func (b *BodyReader) Read(md model.RequestMetadata, r io.Reader) (string, error) {
	if !md.HasBody() {
		return "", nil
	}

	var body bytes.Buffer
	if !md.Chunked {
		body.Grow(int(min(md.ContentLength, int64(b.chunkSize)*16)))
	}
	buf := make([]byte, b.chunkSize)

	var received int64
	for received < md.ContentLength {
		want := min(int64(len(buf)), md.ContentLength-received)
		n, err := io.ReadFull(r, buf[:want])
		body.Write(buf[:n])
		received += int64(n)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			b.logger.Error("reading request body", "err", err, "received", received)
			return "", cgierr.BadRequest("Bad Request: Error reading request body")
		}
	}

	b.logger.Debug("request body read",
		"received", received,
		"declared", md.ContentLength,
		"chunked", md.Chunked,
	)

	if !md.Chunked && received != md.ContentLength {
		return "", cgierr.BadRequest("Bad Request: Incomplete request body")
	}
	if md.Chunked && received > b.maxContentLength {
		return "", cgierr.PayloadTooLarge()
	}

	return decodeUTF8(body.Bytes()), nil
}

// decodeUTF8 returns raw as text, substituting U+FFFD for invalid sequences.
func decodeUTF8(raw []byte) string {
	decoded, err := unicode.UTF8.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "\uFFFD")
	}
	return string(decoded)
}
