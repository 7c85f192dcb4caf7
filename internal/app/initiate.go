package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/rs/cors"
	"github.com/shandysiswandi/goflight/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/goflight/internal/pkg/pkglog"
	"github.com/shandysiswandi/goflight/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/goflight/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/goflight/internal/pkg/pkguid"
)

//nolint:gochecknoglobals // read-only defaults
var configDefaults = map[string]any{
	"tz":                          "UTC",
	"server.address.http":         ":8080",
	"log.level":                   "info",
	"log.file":                    "",
	"log.max_size_mb":             100,
	"log.max_backups":             3,
	"log.max_age_days":            28,
	"modules.flight.enabled":      true,
	"flight.max_upload_bytes":     50 << 20,
	"flight.preview_rows":         10,
	"flight.store.capacity":       256,
	"flight.store.ttl":            "1h",
	"flight.workers":              8,
	"flight.events.buffer":        512,
	"flight.events.ping_interval": "30s",
}

func (a *App) initConfig() {
	path := "/config/config.yaml"
	if os.Getenv("LOCAL") == "true" {
		path = "./config/config.yaml"
	}

	cfg, err := pkgconfig.NewViper(path, configDefaults)
	if err != nil {
		slog.Error("failed to init config", "error", err)
		os.Exit(1)
	}

	//nolint:errcheck,gosec // ignore error
	os.Setenv("TZ", cfg.GetString("tz"))

	a.config = cfg
}

func (a *App) initLogging() {
	closer := pkglog.InitLogging(pkglog.Options{
		Level:      a.config.GetString("log.level"),
		File:       a.config.GetString("log.file"),
		MaxSizeMB:  int(a.config.GetInt("log.max_size_mb")),
		MaxBackups: int(a.config.GetInt("log.max_backups")),
		MaxAgeDays: int(a.config.GetInt("log.max_age_days")),
	})

	if a.closerFn == nil {
		a.closerFn = map[string]func(context.Context) error{}
	}
	a.closerFn["Log File"] = func(context.Context) error {
		return closer.Close()
	}
}

func (a *App) initLibraries() {
	a.goroutine = pkgroutine.NewManager(int(a.config.GetInt("flight.workers")))
	a.uuid = pkguid.NewUUID()

	sf, err := pkguid.NewSnowflake()
	if err != nil {
		slog.Error("failed to init snowflake", "error", err)
		os.Exit(1)
	}
	a.eventID = pkguid.Decimal{NumberID: sf}
}

func (a *App) initHTTPServer() {
	a.router = pkgrouter.NewRouter(a.uuid)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition", pkgrouter.HeaderCorrelationID},
		AllowCredentials: true,
	})

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("server.address.http"),
		Handler:           corsHandler.Handler(a.router),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

//nolint:unparam // is always nil
func (a *App) initClosers() {
	if a.closerFn == nil {
		a.closerFn = map[string]func(context.Context) error{}
	}

	a.closerFn["HTTP Server"] = func(ctx context.Context) error {
		return a.httpServer.Shutdown(ctx)
	}
	a.closerFn["Config"] = func(context.Context) error {
		return a.config.Close()
	}
}
