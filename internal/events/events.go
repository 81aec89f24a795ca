package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventSpotBooked   = "spot_booked"
	EventSpotReserved = "spot_reserved"
	EventSpotReleased = "spot_released"
	EventLotCreated   = "lot_created"
	EventLotDeleted   = "lot_deleted"
)

// SpotEventPayload describes the minimal spot snapshot for event consumers.
type SpotEventPayload struct {
	SpotID     int64      `json:"spot_id"`
	LotID      int64      `json:"lot_id"`
	LotName    string     `json:"lot_name,omitempty"`
	SpotNumber string     `json:"spot_number"`
	UserEmail  string     `json:"user_email"`
	BookedAt   *time.Time `json:"booked_at,omitempty"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
	Duration   float64    `json:"duration,omitempty"`
	Cost       float64    `json:"cost,omitempty"`
}

// LotEventPayload describes a lot lifecycle change.
type LotEventPayload struct {
	LotID    int64  `json:"lot_id"`
	Name     string `json:"name"`
	MaxSpots int    `json:"max_spots,omitempty"`
	ByEmail  string `json:"by_email,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
