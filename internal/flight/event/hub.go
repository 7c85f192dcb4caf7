package event

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shandysiswandi/goflight/internal/flight/entity"
)

// Hub fans stage events out to the subscribers of each analysis. A slow
// subscriber misses events instead of blocking the consumer.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

type Subscription struct {
	AnalysisID string

	ch   chan entity.StageEvent
	hub  *Hub
	once sync.Once
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[*Subscription]struct{}),
	}
}

func (h *Hub) Subscribe(analysisID string, buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}

	sub := &Subscription{
		AnalysisID: analysisID,
		ch:         make(chan entity.StageEvent, buffer),
		hub:        h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[analysisID] == nil {
		h.subs[analysisID] = make(map[*Subscription]struct{})
	}
	h.subs[analysisID][sub] = struct{}{}

	return sub
}

// Events is closed once the subscription is closed.
func (s *Subscription) Events() <-chan entity.StageEvent {
	return s.ch
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()

		if subs, ok := s.hub.subs[s.AnalysisID]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(s.hub.subs, s.AnalysisID)
			}
		}
		close(s.ch)
	})
}

func (h *Hub) Subscribers(analysisID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs[analysisID])
}

func (h *Hub) Handle(ctx context.Context, event entity.StageEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[event.AnalysisID] {
		select {
		case sub.ch <- event:
		default:
			slog.WarnContext(ctx, "drop stage event for slow subscriber", "analysis_id", event.AnalysisID, "stage", event.Stage)
		}
	}

	return nil
}
