package events

import (
	"sync"
	"time"
)

// Event types published by the schedule store and the export runner.
const (
	TypeServiceAdded       = "service_added"
	TypeServiceUpdated     = "service_updated"
	TypeServiceRemoved     = "service_removed"
	TypeDayAssigned        = "day_assigned"
	TypeDayUnassigned      = "day_unassigned"
	TypeOverrideSet        = "override_set"
	TypeOverrideRemoved    = "override_removed"
	TypeAssignmentsCleared = "assignments_cleared"
	TypeTimeFormatChanged  = "time_format_changed"
	TypeExportFinished     = "export_finished"
)

// Event is a lightweight state-change notification. Subscribers replace
// the implicit refresh keys of earlier designs: whoever renders the
// schedule re-reads the store when one arrives.
type Event struct {
	Type      string
	Date      string // ISO date, when the change is date-scoped
	ServiceID string // affected service, when applicable
	Detail    string // free-form, e.g. export target or error text
	CreatedAt time.Time
}

// Handler reacts to an event.
type Handler func(event Event)

// Bus provides in-process pub/sub for schedule events.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a given event type. The empty type
// subscribes to every event.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.subscribers[""]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		handler(event)
	}
}
