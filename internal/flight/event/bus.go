package event

import (
	"context"
	"errors"
	"sync"

	"github.com/shandysiswandi/goflight/internal/flight/entity"
)

var ErrBusClosed = errors.New("event bus is closed")

// Bus carries stage events from the analysis pipeline to the consumer.
type Bus struct {
	mu     sync.RWMutex
	closed bool
	ch     chan entity.StageEvent
}

func NewBus(buffer int) *Bus {
	if buffer < 1 {
		buffer = 1
	}

	return &Bus{
		ch: make(chan entity.StageEvent, buffer),
	}
}

func (b *Bus) Publish(ctx context.Context, event entity.StageEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	select {
	case b.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) Subscribe() <-chan entity.StageEvent {
	return b.ch
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	close(b.ch)
}
