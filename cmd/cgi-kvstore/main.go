package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"

	"cgi-kvstore/internal/cgierr"
	"cgi-kvstore/internal/config"
	"cgi-kvstore/internal/gateway"
	"cgi-kvstore/internal/handler"
	"cgi-kvstore/internal/metrics"
	"cgi-kvstore/internal/middleware"
	"cgi-kvstore/internal/model"
	"cgi-kvstore/internal/request"
	"cgi-kvstore/internal/response"
	"cgi-kvstore/internal/service"
	"cgi-kvstore/internal/storage"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(invoke(os.Args[1:], os.Getenv, os.Stdin, os.Stdout, os.Stderr))
}

// invoke parses the command line and serves one request. Under a web server
// argv holds ISINDEX query words rather than flags, so it is not parsed.
func invoke(args []string, getenv func(string) string, stdin io.Reader, stdout, stderr io.Writer) int {
	if getenv(model.EnvGatewayInterface) != "" {
		args = nil
	}

	cli, err := parseCLI(args, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "cgi-kvstore: arguments: %v\n", err)
		return respondInternal(stdout, stderr)
	}
	return run(cli, model.EnvFromLookup(getenv), stdin, stdout, stderr)
}

// parseCLI binds flags and CGI_KVSTORE_* variables. Errors are returned rather
// than ending the process so the caller can still answer the request.
func parseCLI(args []string, stdout, stderr io.Writer) (*config.CLI, error) {
	var cli config.CLI
	parser, err := kong.New(&cli,
		kong.Name("cgi-kvstore"),
		kong.Description("CGI program serving a sandboxed, create-only key/value store."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		return nil, err
	}
	if _, err := parser.Parse(args); err != nil {
		return nil, err
	}
	return &cli, nil
}

// respondInternal answers with a bare 500 when the app could not be built.
func respondInternal(stdout, stderr io.Writer) int {
	if err := response.Write(stdout, response.FromError(cgierr.Internal())); err != nil {
		fmt.Fprintf(stderr, "cgi-kvstore: %v\n", err)
		return 1
	}
	return 0
}

// run serves one CGI request. Whatever fails, a response is written to stdout
// unless stdout itself is broken, which is the only case reported by a
// non-zero exit code.
func run(cli *config.CLI, env model.Env, stdin io.Reader, stdout, stderr io.Writer) int {
	var gw *gateway.Gateway
	app := fx.New(
		fx.NopLogger,
		fx.Provide(
			func() *config.CLI { return cli },
			func() io.Writer { return stderr },
			config.Load,
			newLogger,
			metrics.New,
			storage.New,
			service.NewKeyService,
			request.NewValidator,
			request.NewBodyReader,
			handler.NewKeyHandler,
			newEcho,
			gateway.New,
		),
		fx.Invoke(handler.RegisterRoutes, warnConfigPermissions, flushMetrics),
		fx.Populate(&gw),
	)

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		fmt.Fprintf(stderr, "cgi-kvstore: startup: %v\n", err)
		return respondInternal(stdout, stderr)
	}

	code := 0
	if err := gw.Serve(ctx, env, stdin, stdout); err != nil {
		fmt.Fprintf(stderr, "cgi-kvstore: %v\n", err)
		code = 1
	}

	if err := app.Stop(ctx); err != nil {
		fmt.Fprintf(stderr, "cgi-kvstore: shutdown: %v\n", err)
	}
	return code
}

// newLogger builds the process logger. Stdout carries the response, so logs
// always go to the injected stderr writer.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		h = slog.NewJSONHandler(w, opts)
	}

	return slog.New(h)
}

func newEcho(logger *slog.Logger, m *metrics.Metrics, w io.Writer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetOutput(w)
	e.HTTPErrorHandler = handler.ErrorHandler(logger)

	// Recover sits innermost so panics are logged and counted like any 500.
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.MetricsMiddleware(m))
	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		LogErrorFunc: func(_ echo.Context, err error, stack []byte) error {
			logger.Error("panic recovered", "err", err, "stack", string(stack))
			return err
		},
	}))

	return e
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

// flushMetrics writes the textfile when the invocation ends.
func flushMetrics(lc fx.Lifecycle, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) {
	if !cfg.Metrics.Enabled {
		return
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			m.LastRequestTime.SetToCurrentTime()
			if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				// Metrics never fail a request that was already answered.
				logger.Warn("writing metrics textfile", "err", err)
			}
			return nil
		},
	})
}
