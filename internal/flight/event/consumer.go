package event

import (
	"context"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shandysiswandi/goflight/internal/flight/entity"
)

const seenEventsCapacity = 4096

type Handler interface {
	Handle(ctx context.Context, event entity.StageEvent) error
}

type ConsumerConfig struct {
	Workers     int
	MaxRetries  int
	BaseBackoff time.Duration
}

// StageConsumer drains the bus and hands each event to every handler, retrying
// a failing handler with exponential backoff. Events are delivered at most once
// per event id.
//
// Use a single worker when handlers rely on the order of stages.
type StageConsumer struct {
	bus         *Bus
	handlers    []Handler
	workers     int
	maxRetries  int
	baseBackoff time.Duration
	seen        *lru.Cache[string, struct{}]
	wg          sync.WaitGroup
}

func NewStageConsumer(bus *Bus, cfg ConsumerConfig, handlers ...Handler) *StageConsumer {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	baseBackoff := cfg.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = 100 * time.Millisecond
	}

	//nolint:errcheck // only fails for a non-positive size
	seen, _ := lru.New[string, struct{}](seenEventsCapacity)

	return &StageConsumer{
		bus:         bus,
		handlers:    handlers,
		workers:     workers,
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
		seen:        seen,
	}
}

func (c *StageConsumer) Start() {
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
}

func (c *StageConsumer) Stop(ctx context.Context) error {
	if c.bus != nil {
		c.bus.Close()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *StageConsumer) worker() {
	defer c.wg.Done()

	for event := range c.bus.Subscribe() {
		c.processEvent(event)
	}
}

func (c *StageConsumer) processEvent(event entity.StageEvent) {
	if event.EventID != "" {
		if seen, _ := c.seen.ContainsOrAdd(event.EventID, struct{}{}); seen {
			slog.Info("skip duplicate stage event", "event_id", event.EventID, "analysis_id", event.AnalysisID)
			return
		}
	}

	for _, h := range c.handlers {
		c.deliver(h, event)
	}
}

func (c *StageConsumer) deliver(h Handler, event entity.StageEvent) {
	backoff := c.baseBackoff
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		err := h.Handle(context.Background(), event)
		if err == nil {
			return
		}

		if attempt == c.maxRetries {
			slog.Error("failed to deliver stage event after retries", "event_id", event.EventID, "analysis_id", event.AnalysisID, "stage", event.Stage, "error", err)
			return
		}

		sleepBackoff(backoff)
		backoff *= 2
	}
}

func sleepBackoff(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	<-timer.C
}

// LogNotifier records every stage transition in the application log.
type LogNotifier struct{}

func (LogNotifier) Handle(ctx context.Context, event entity.StageEvent) error {
	attrs := []any{
		"event_id", event.EventID,
		"analysis_id", event.AnalysisID,
		"stage", event.Stage,
		"status", event.Status,
	}
	if event.Message != "" {
		attrs = append(attrs, "message", event.Message)
	}

	if event.Stage == entity.StageFailed {
		slog.WarnContext(ctx, "flight analysis stage", attrs...)
		return nil
	}

	slog.InfoContext(ctx, "flight analysis stage", attrs...)
	return nil
}
