package app

import (
	"context"
	"log/slog"
	"os"

	"github.com/shandysiswandi/goflight/internal/flight"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.flight.enabled") {
		closer, err := flight.New(flight.Dependency{
			Config:    a.config,
			Router:    a.router,
			Goroutine: a.goroutine,
			Context:   a.ctx,
			ID:        a.uuid,
			EventID:   a.eventID,
		})
		if err != nil {
			slog.Error("failed to init module flight", "error", err)
			os.Exit(1)
		}
		if closer != nil {
			if a.closerFn == nil {
				a.closerFn = map[string]func(context.Context) error{}
			}
			a.closerFn["Flight"] = closer
		}
	}
}
