package flight

import (
	"context"
	"time"

	"github.com/shandysiswandi/goflight/internal/flight/event"
	"github.com/shandysiswandi/goflight/internal/flight/inbound"
	"github.com/shandysiswandi/goflight/internal/flight/store"
	"github.com/shandysiswandi/goflight/internal/flight/usecase"
	"github.com/shandysiswandi/goflight/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/goflight/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/goflight/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/goflight/internal/pkg/pkguid"
)

type Dependency struct {
	Config    pkgconfig.Config
	Goroutine *pkgroutine.Manager
	Router    *pkgrouter.Router
	Context   context.Context
	ID        pkguid.StringID
	EventID   pkguid.StringID
}

func New(dep Dependency) (func(context.Context) error, error) {
	storage := store.NewInMemoryStore(
		int(dep.Config.GetInt("flight.store.capacity")),
		dep.Config.GetDuration("flight.store.ttl"),
	)

	bus := event.NewBus(int(dep.Config.GetInt("flight.events.buffer")))
	hub := event.NewHub()

	// One worker keeps the stages of an analysis in order for the hub.
	consumer := event.NewStageConsumer(bus, event.ConsumerConfig{
		Workers:     1,
		MaxRetries:  3,
		BaseBackoff: 200 * time.Millisecond,
	}, event.LogNotifier{}, hub)
	consumer.Start()

	if dep.ID == nil {
		dep.ID = pkguid.NewUUID()
	}
	if dep.EventID == nil {
		sf, err := pkguid.NewSnowflake()
		if err != nil {
			return nil, err
		}
		dep.EventID = pkguid.Decimal{NumberID: sf}
	}

	maxUploadBytes := dep.Config.GetInt("flight.max_upload_bytes")

	uc := usecase.New(usecase.Dependency{
		Store:          storage,
		Events:         bus,
		Runner:         dep.Goroutine,
		ID:             dep.ID,
		EventID:        dep.EventID,
		RootCtx:        dep.Context,
		MaxUploadBytes: maxUploadBytes,
		PreviewRows:    int(dep.Config.GetInt("flight.preview_rows")),
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc, hub, inbound.Config{
		MaxUploadBytes: maxUploadBytes,
		EventsBuffer:   int(dep.Config.GetInt("flight.events.buffer")),
		PingInterval:   dep.Config.GetDuration("flight.events.ping_interval"),
	})

	return consumer.Stop, nil
}
