package inbound

import (
	"context"
	"net/http"
	"time"

	"github.com/shandysiswandi/goflight/internal/flight/entity"
	"github.com/shandysiswandi/goflight/internal/flight/event"
	"github.com/shandysiswandi/goflight/internal/flight/usecase"
	"github.com/shandysiswandi/goflight/internal/pkg/pkgrouter"
)

type uc interface {
	Upload(ctx context.Context, in usecase.UploadInput) (usecase.UploadResult, error)
	Analysis(ctx context.Context, analysisID string) (usecase.AnalysisResult, error)
	Preview(ctx context.Context, analysisID string, rows int) (usecase.PreviewResult, error)
	Path(ctx context.Context, analysisID string) (usecase.PathResult, error)
	Series(ctx context.Context, analysisID string) (usecase.SeriesResult, error)
	SelectColumns(ctx context.Context, analysisID string, roles entity.ColumnRoles) (usecase.AnalysisResult, error)
	Cancel(ctx context.Context, analysisID string) error
	Export(ctx context.Context, analysisID string) (usecase.ExportResult, error)
}

type Config struct {
	MaxUploadBytes int64
	EventsBuffer   int
	PingInterval   time.Duration
}

// multipartOverhead leaves room for boundaries and form fields on top of the
// file size limit.
const multipartOverhead = 64 * 1024

func RegisterHTTPEndpoint(r *pkgrouter.Router, uc uc, hub *event.Hub, cfg Config) {
	end := &HTTPEndpoint{uc: uc, hub: hub, cfg: cfg}

	var limit []pkgrouter.Middleware
	if cfg.MaxUploadBytes > 0 {
		limit = append(limit, pkgrouter.MaxBodyBytes(cfg.MaxUploadBytes+multipartOverhead))
	}

	r.POST("/flights", end.Upload, limit...)

	r.GET("/flights/:id", end.Analysis)
	r.GET("/flights/:id/preview", end.Preview) // ?rows=
	r.GET("/flights/:id/path", end.Path)
	r.GET("/flights/:id/series", end.Series)
	r.PUT("/flights/:id/columns", end.SelectColumns)
	r.POST("/flights/:id/cancel", end.Cancel)

	r.Handle(http.MethodGet, "/flights/:id/export", http.HandlerFunc(end.Export))
	r.Handle(http.MethodGet, "/flights/:id/events", http.HandlerFunc(end.Events))
}
