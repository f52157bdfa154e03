// Package collect is the HTTP intake for page and widget lifecycle events.
// A thin page snippet posts events here; the handler translates wire
// payloads into typed events and dispatches them to the widget bridge.
package collect

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/ignite/attribution-relay/internal/bridge"
)

// Config holds the transport-level settings of the collect surface.
type Config struct {
	// VisitorCookie names the first-party cookie identifying the visitor.
	VisitorCookie string
	// SessionCookie names the CRM session cookie (hubspotutk) forwarded into
	// booking submissions when present.
	SessionCookie string
	// CookieDomain is the domain scope for the visitor cookie.
	CookieDomain string
	// CookieTTL is the visitor cookie lifetime, aligned with the stored
	// record's attribution window.
	CookieTTL time.Duration
	// AllowedOrigins are the embedding sites permitted to post events.
	AllowedOrigins []string
}

// Handler exposes the event intake routes.
type Handler struct {
	dispatcher *bridge.Dispatcher
	cfg        Config
}

// NewHandler creates the intake handler.
func NewHandler(dispatcher *bridge.Dispatcher, cfg Config) *Handler {
	return &Handler{dispatcher: dispatcher, cfg: cfg}
}

// Routes builds the chi router for the intake surface.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	// Credentials must be allowed so the visitor cookie travels with the
	// cross-origin event posts.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/v1/events/pageview", h.HandlePageView)
	r.Post("/v1/events/widget", h.HandleWidget)
	r.Post("/v1/events/booking", h.HandleBooking)
	r.Get("/health", h.HandleHealth)
	return r
}

type pageViewRequest struct {
	PageURL  string `json:"page_url"`
	Referrer string `json:"referrer"`
}

// HandlePageView records an initial load or client-side navigation.
func (h *Handler) HandlePageView(w http.ResponseWriter, r *http.Request) {
	var req pageViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	visitorID := h.ensureVisitor(w, r)
	h.dispatcher.Dispatch(r.Context(), bridge.Event{
		Type:      bridge.EventPageView,
		VisitorID: visitorID,
		PageURL:   req.PageURL,
		Referrer:  req.Referrer,
	})
	w.WriteHeader(http.StatusNoContent)
}

// widgetRequest mirrors the widget's own message shape: a discriminator
// pair (type, eventName) plus an optional form identifier.
type widgetRequest struct {
	Type      string `json:"type"`
	EventName string `json:"eventName"`
	ID        string `json:"id"`
	Widget    string `json:"widget"`
}

// HandleWidget processes form lifecycle notifications. A form-ready event
// answers with the projected field values for the page to apply; a submit
// event clears stored attribution and answers empty.
func (h *Handler) HandleWidget(w http.ResponseWriter, r *http.Request) {
	var req widgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	widget := req.Widget
	if widget == "" && req.Type == "hsFormCallback" {
		widget = "hubspot"
	}

	visitorID := h.ensureVisitor(w, r)
	evt := bridge.Event{
		VisitorID: visitorID,
		Widget:    widget,
		FormID:    req.ID,
	}

	switch req.EventName {
	case "onFormReady":
		evt.Type = bridge.EventFormReady
		evt.Reply = &bridge.ProjectionReply{}
		h.dispatcher.Dispatch(r.Context(), evt)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"fields": evt.Reply.Fields})
	case "onFormSubmit":
		evt.Type = bridge.EventFormSubmitted
		h.dispatcher.Dispatch(r.Context(), evt)
		w.WriteHeader(http.StatusNoContent)
	default:
		// Unknown widget notifications are ignored, not rejected.
		w.WriteHeader(http.StatusNoContent)
	}
}

// bookingRequest mirrors the scheduling widget's success message.
type bookingRequest struct {
	MeetingBookSucceeded bool   `json:"meetingBookSucceeded"`
	PageURL              string `json:"page_url"`
	MeetingsPayload      struct {
		BookingResponse struct {
			Contact struct {
				Email string `json:"email"`
			} `json:"contact"`
		} `json:"bookingResponse"`
	} `json:"meetingsPayload"`
}

// HandleBooking processes a scheduling-widget booking confirmation.
func (h *Handler) HandleBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if !req.MeetingBookSucceeded {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	visitorID := h.ensureVisitor(w, r)
	h.dispatcher.Dispatch(r.Context(), bridge.Event{
		Type:         bridge.EventBookingSucceeded,
		VisitorID:    visitorID,
		PageURL:      req.PageURL,
		SessionToken: h.sessionToken(r),
		Booking:      &bridge.Booking{Email: req.MeetingsPayload.BookingResponse.Contact.Email},
	})
	w.WriteHeader(http.StatusNoContent)
}

// HandleHealth is the liveness probe.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// ensureVisitor returns the visitor ID from the identity cookie, minting a
// new one on first contact.
func (h *Handler) ensureVisitor(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(h.cfg.VisitorCookie); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.VisitorCookie,
		Value:    id,
		Path:     "/",
		Domain:   h.cfg.CookieDomain,
		Expires:  time.Now().Add(h.cfg.CookieTTL),
		SameSite: http.SameSiteLaxMode,
		Secure:   true,
	})
	return id
}

// sessionToken reads the CRM session cookie, empty when absent. The token
// rides along on booking submissions; it is unrelated to visitor identity.
func (h *Handler) sessionToken(r *http.Request) string {
	if c, err := r.Cookie(h.cfg.SessionCookie); err == nil {
		return c.Value
	}
	return ""
}
