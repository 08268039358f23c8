// Package handler routes CGI requests to the welcome, read and write handlers.
package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"cgi-kvstore/internal/cgierr"
	"cgi-kvstore/internal/config"
	"cgi-kvstore/internal/model"
	"cgi-kvstore/internal/service"
)

type metadataKey struct{}

// WithMetadata attaches validated request metadata to ctx for the handlers.
func WithMetadata(ctx context.Context, md model.RequestMetadata) context.Context {
	return context.WithValue(ctx, metadataKey{}, md)
}

// metadataFrom returns the metadata attached by the gateway, or derives it
// from the request itself when the handler is driven directly.
func metadataFrom(req *http.Request) model.RequestMetadata {
	if md, ok := req.Context().Value(metadataKey{}).(model.RequestMetadata); ok {
		return md
	}
	return model.RequestMetadata{
		Method:        req.Method,
		ContentLength: max(req.ContentLength, 0),
		ContentType:   req.Header.Get(echo.HeaderContentType),
		PathInfo:      req.URL.Path,
	}
}

// KeyHandler serves the welcome message and the key/value endpoints.
type KeyHandler struct {
	service *service.KeyService
	welcome string
	logger  *slog.Logger
}

// NewKeyHandler creates a KeyHandler.
func NewKeyHandler(svc *service.KeyService, cfg *config.Config, logger *slog.Logger) *KeyHandler {
	return &KeyHandler{
		service: svc,
		welcome: cfg.Request.WelcomeMessage,
		logger:  logger.With("component", "key_handler"),
	}
}

// Welcome answers GET / with the configured welcome text.
func (h *KeyHandler) Welcome(c echo.Context) error {
	return c.String(http.StatusOK, h.welcome)
}

// Get answers GET /<key> with the stored value.
func (h *KeyHandler) Get(c echo.Context) error {
	key := c.Param("*")

	value, err := h.service.Get(key)
	if err != nil {
		return err
	}
	return c.String(http.StatusOK, value)
}

// Put stores the request body under /<key>. Keys are create-only.
func (h *KeyHandler) Put(c echo.Context) error {
	req := c.Request()
	md := metadataFrom(req)

	if md.ContentLength == 0 {
		return cgierr.LengthRequired()
	}
	if md.PathInfo == "" {
		return cgierr.BadRequest("Bad Request: missing path")
	}
	key := strings.TrimPrefix(md.PathInfo, "/")
	if key == "" {
		return cgierr.BadRequest("Bad Request: missing key")
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return fmt.Errorf("read dispatched body: %w", err)
	}

	stored, err := h.service.Put(key, string(body))
	if err != nil {
		return err
	}

	h.logger.Info("value stored", "key", key, "bytes", len(stored))
	return c.String(http.StatusCreated, fmt.Sprintf("Stored value for '%s': %s", key, stored))
}
