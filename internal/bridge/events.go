package bridge

import (
	"context"
	"sync"

	"github.com/ignite/attribution-relay/internal/attribution"
	"github.com/ignite/attribution-relay/internal/pkg/logger"
)

// EventType discriminates page and widget lifecycle notifications.
type EventType string

const (
	// EventPageView covers the initial page load and client-side navigation.
	EventPageView EventType = "page_view"
	// EventFormReady fires when an embedded form widget has rendered and can
	// accept field values.
	EventFormReady EventType = "form_ready"
	// EventFormSubmitted fires after a form widget submission.
	EventFormSubmitted EventType = "form_submitted"
	// EventBookingSucceeded fires when a scheduling widget confirms a booking.
	EventBookingSucceeded EventType = "booking_succeeded"
)

// Booking is the payload of a scheduling-widget success notification.
type Booking struct {
	Email string
}

// ProjectionReply receives the fields projected for a form-ready event so
// the transport can hand them back to the page.
type ProjectionReply struct {
	Fields []attribution.Field
}

// Event is one page or widget lifecycle notification.
type Event struct {
	Type      EventType
	VisitorID string

	// PageURL and Referrer accompany page views; PageURL is also the pageUri
	// for outbound submissions.
	PageURL  string
	Referrer string

	// Widget and FormID identify the emitting widget for form events.
	Widget string
	FormID string

	// SessionToken is the CRM session cookie value, when present.
	SessionToken string

	// Booking is set on booking_succeeded events.
	Booking *Booking

	// Reply, when non-nil, collects projected fields for form_ready.
	Reply *ProjectionReply
}

// Handler processes one event.
type Handler func(ctx context.Context, evt Event) error

// Dispatcher routes events to typed handlers. Dispatch is synchronous and
// in registration order, which gives the causal ordering the store needs:
// a resolve triggered by one event is persisted before any later event in
// the same turn reads the record.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers a handler for an event type.
func (d *Dispatcher) Subscribe(t EventType, h Handler) {
	d.mu.Lock()
	d.handlers[t] = append(d.handlers[t], h)
	d.mu.Unlock()
}

// Dispatch runs every handler registered for the event's type. Handler
// errors are logged, never propagated: no attribution failure may surface
// to the page.
func (d *Dispatcher) Dispatch(ctx context.Context, evt Event) {
	d.mu.RLock()
	handlers := d.handlers[evt.Type]
	d.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, evt); err != nil {
			logger.Error("event handler failed",
				"event", string(evt.Type), "visitor_id", evt.VisitorID, "error", err.Error())
		}
	}
}
