// Package bridge glues page and widget lifecycle events to the attribution
// resolver and store, and pushes stored attribution into widget fields and
// outbound CRM submissions.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/attribution-relay/internal/attribution"
	"github.com/ignite/attribution-relay/internal/pkg/logger"
	"github.com/ignite/attribution-relay/internal/store"
)

// State tracks a visitor's progress through the attribution lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateResolved  State = "resolved"
	StateProjected State = "projected"
	StateSubmitted State = "submitted"
	StateCleared   State = "cleared"
)

// FieldProjector maps a stored record to the field names a specific widget
// expects. Each widget integration ships its own projector.
type FieldProjector interface {
	ProjectFields(rec *attribution.Record) []attribution.Field
}

// Submission is the outbound payload handed to a CRM backend after a
// successful booking.
type Submission struct {
	Email        string
	Record       attribution.Record
	SessionToken string
	PageURI      string
	SubmittedAt  time.Time
}

// Submitter delivers a submission to a CRM backend.
type Submitter interface {
	Submit(ctx context.Context, sub Submission) error
}

// Bridge consumes lifecycle events, resolving and persisting attribution and
// projecting it into widgets.
type Bridge struct {
	resolver   *attribution.Resolver
	store      *store.Store
	projectors map[string]FieldProjector
	submitter  Submitter

	mu     sync.Mutex
	states map[string]State
}

// New builds a bridge. projectors is keyed by widget name; submitter may be
// nil when no CRM backend is enabled.
func New(resolver *attribution.Resolver, st *store.Store, projectors map[string]FieldProjector, submitter Submitter) *Bridge {
	if projectors == nil {
		projectors = make(map[string]FieldProjector)
	}
	return &Bridge{
		resolver:   resolver,
		store:      st,
		projectors: projectors,
		submitter:  submitter,
		states:     make(map[string]State),
	}
}

// Register subscribes the bridge's handlers on a dispatcher.
func (b *Bridge) Register(d *Dispatcher) {
	d.Subscribe(EventPageView, b.HandlePageView)
	d.Subscribe(EventFormReady, b.HandleFormReady)
	d.Subscribe(EventFormSubmitted, b.HandleFormSubmitted)
	d.Subscribe(EventBookingSucceeded, b.HandleBookingSucceeded)
}

// VisitorState reports where a visitor sits in the lifecycle.
func (b *Bridge) VisitorState(visitorID string) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.states[visitorID]; ok {
		return s
	}
	return StateIdle
}

func (b *Bridge) setState(visitorID string, s State) {
	b.mu.Lock()
	b.states[visitorID] = s
	b.mu.Unlock()
}

// HandlePageView resolves attribution for a page load or client-side
// navigation. The write completes before the handler returns, so a
// form-ready projection in the same turn reads the fresh record.
func (b *Bridge) HandlePageView(ctx context.Context, evt Event) error {
	stored, err := b.store.Read(ctx, evt.VisitorID)
	if err != nil {
		return err
	}

	rec, changed := b.resolver.Resolve(evt.PageURL, evt.Referrer, stored)
	if !changed {
		return nil
	}
	if err := b.store.Write(ctx, evt.VisitorID, rec); err != nil {
		return err
	}

	b.setState(evt.VisitorID, StateResolved)
	logger.Info("attribution resolved",
		"visitor_id", evt.VisitorID, "source", rec.Source, "medium", rec.Medium)
	return nil
}

// HandleFormReady projects the stored record into the widget's field slots.
// Absent sub-fields project as the literal "not-set" marker rather than
// blank; the downstream CRM relies on that signal of absence.
func (b *Bridge) HandleFormReady(ctx context.Context, evt Event) error {
	projector, ok := b.projectors[evt.Widget]
	if !ok {
		logger.Debug("no projector for widget", "widget", evt.Widget)
		return nil
	}

	rec, err := b.store.Read(ctx, evt.VisitorID)
	if err != nil {
		return err
	}

	fields := projector.ProjectFields(rec)
	if evt.Reply != nil {
		evt.Reply.Fields = fields
	}

	b.setState(evt.VisitorID, StateProjected)
	return nil
}

// HandleFormSubmitted clears the stored record: one attribution record is
// never reused for a second, unrelated conversion.
func (b *Bridge) HandleFormSubmitted(ctx context.Context, evt Event) error {
	if err := b.store.Clear(ctx, evt.VisitorID); err != nil {
		return err
	}
	b.setState(evt.VisitorID, StateCleared)
	logger.Info("attribution cleared after form submit",
		"visitor_id", evt.VisitorID, "form_id", evt.FormID)
	return nil
}

// HandleBookingSucceeded builds a CRM submission from the booking email, the
// stored record, the session token and the page URL, and dispatches it
// fire-and-forget. A missing email aborts the flow.
func (b *Bridge) HandleBookingSucceeded(ctx context.Context, evt Event) error {
	if b.submitter == nil {
		return nil
	}
	if evt.Booking == nil || evt.Booking.Email == "" {
		return fmt.Errorf("booking event without contact email")
	}

	rec, err := b.store.Read(ctx, evt.VisitorID)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &attribution.Record{}
	}

	sub := Submission{
		Email:        evt.Booking.Email,
		Record:       *rec,
		SessionToken: evt.SessionToken,
		PageURI:      evt.PageURL,
		SubmittedAt:  time.Now(),
	}

	// Fire-and-forget: the outcome is logged, never retried, and never
	// blocks subsequent resolution.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := b.submitter.Submit(ctx, sub); err != nil {
			logger.Error("crm submission failed",
				"visitor_id", evt.VisitorID, "email", sub.Email, "error", err.Error())
			return
		}
		logger.Info("crm submission delivered",
			"visitor_id", evt.VisitorID, "email", sub.Email)
	}()

	b.setState(evt.VisitorID, StateSubmitted)
	return nil
}
