// Package gateway runs a single CGI request: it validates the environment,
// reads the body, dispatches to the Echo router and writes one response.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"cgi-kvstore/internal/cgierr"
	"cgi-kvstore/internal/handler"
	"cgi-kvstore/internal/metrics"
	"cgi-kvstore/internal/model"
	"cgi-kvstore/internal/request"
	"cgi-kvstore/internal/response"
)

// Gateway turns CGI input into a CGI response.
type Gateway struct {
	validator *request.Validator
	body      *request.BodyReader
	echo      *echo.Echo
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// New creates a Gateway. The metrics parameter is optional; pass nil to
// disable recording of requests rejected before dispatch.
func New(v *request.Validator, br *request.BodyReader, e *echo.Echo, logger *slog.Logger, m *metrics.Metrics) *Gateway {
	return &Gateway{
		validator: v,
		body:      br,
		echo:      e,
		logger:    logger.With("component", "gateway"),
		metrics:   m,
	}
}

// Serve handles the request described by env and in and writes exactly one
// response to out. Validation and handler failures become error responses;
// only a failure to write the response itself is returned.
func (g *Gateway) Serve(ctx context.Context, env model.Env, in io.Reader, out io.Writer) error {
	resp := g.Handle(ctx, env, in)
	return response.Write(out, resp)
}

// Handle produces the response for one request without writing it.
func (g *Gateway) Handle(ctx context.Context, env model.Env, in io.Reader) (resp model.Response) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("panic while handling request", "panic", fmt.Sprint(r))
			resp = response.FromError(cgierr.Internal())
		}
	}()

	md, err := g.validator.Validate(env)
	if err != nil {
		return g.reject(env.RequestMethod, env.PathInfo, err, start)
	}

	body, err := g.body.Read(md, in)
	if err != nil {
		return g.reject(md.Method, md.PathInfo, err, start)
	}
	if g.metrics != nil && md.HasBody() {
		g.metrics.RequestBodySize.Observe(float64(len(body)))
	}

	return g.dispatch(ctx, md, body)
}

// dispatch runs the validated request through the Echo router and captures
// what the handler wrote.
func (g *Gateway) dispatch(ctx context.Context, md model.RequestMetadata, body string) model.Response {
	req, err := http.NewRequestWithContext(handler.WithMetadata(ctx, md), md.Method, "/", strings.NewReader(body))
	if err != nil {
		g.logger.Error("building dispatch request", "err", err)
		return response.FromError(cgierr.Internal())
	}
	// PATH_INFO is already decoded by the server; set it verbatim.
	req.URL.Path = md.PathInfo
	if req.URL.Path == "" {
		req.URL.Path = "/"
	}
	req.ContentLength = int64(len(body))
	if md.ContentType != "" {
		req.Header.Set(echo.HeaderContentType, md.ContentType)
	}

	rec := newRecorder()
	g.echo.ServeHTTP(rec, req)

	return model.Response{
		StatusCode:    rec.status,
		StatusMessage: cgierr.Describe(rec.status),
		Body:          rec.body.Bytes(),
	}
}

func (g *Gateway) reject(method, path string, err error, start time.Time) model.Response {
	ce := cgierr.From(err)
	if ce.Code >= http.StatusInternalServerError {
		g.logger.Error("request failed", "method", method, "path", path, "err", err)
	} else {
		g.logger.Info("request rejected", "method", method, "path", path, "status", ce.Code, "reason", ce.Message)
	}

	if g.metrics != nil {
		status := strconv.Itoa(ce.Code)
		m := metrics.NormalizeMethod(strings.ToUpper(method))
		route := metrics.NormalizeRoute(path)
		g.metrics.RequestsTotal.WithLabelValues(m, status, route).Inc()
		g.metrics.RequestDuration.WithLabelValues(m, status, route).Observe(time.Since(start).Seconds())
	}

	return response.FromError(ce)
}

// recorder is the http.ResponseWriter handed to Echo. Headers are collected
// but not emitted: CGI output carries a fixed header set.
type recorder struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func newRecorder() *recorder {
	return &recorder{header: make(http.Header), status: http.StatusOK}
}

func (r *recorder) Header() http.Header {
	return r.header
}

func (r *recorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
	r.wroteHeader = true
}

func (r *recorder) Write(p []byte) (int, error) {
	r.wroteHeader = true
	return r.body.Write(p)
}
