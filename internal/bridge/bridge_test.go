package bridge_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/attribution-relay/internal/attribution"
	"github.com/ignite/attribution-relay/internal/bridge"
	"github.com/ignite/attribution-relay/internal/hubspot"
	"github.com/ignite/attribution-relay/internal/pardot"
	"github.com/ignite/attribution-relay/internal/store"
)

type captureSubmitter struct {
	submissions chan bridge.Submission
	err         error
}

func newCaptureSubmitter() *captureSubmitter {
	return &captureSubmitter{submissions: make(chan bridge.Submission, 1)}
}

func (c *captureSubmitter) Submit(ctx context.Context, sub bridge.Submission) error {
	c.submissions <- sub
	return c.err
}

func (c *captureSubmitter) wait(t *testing.T) bridge.Submission {
	t.Helper()
	select {
	case sub := <-c.submissions:
		return sub
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for submission")
		return bridge.Submission{}
	}
}

func newTestResolver() *attribution.Resolver {
	return attribution.NewResolver(attribution.ResolverConfig{
		ReferrersToIgnore:  []string{"acme"},
		OrganicHostnames:   []string{"google", "bing"},
		ReplaceableMediums: []string{"none", "direct", "referral", "helper_ref"},
	})
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return store.New(store.NewRedisKV(client), "utm_params", 24*time.Hour)
}

func newTestBridge(t *testing.T, submitter bridge.Submitter) (*bridge.Bridge, *bridge.Dispatcher, *store.Store) {
	t.Helper()
	st := newTestStore(t)
	b := bridge.New(newTestResolver(), st, map[string]bridge.FieldProjector{
		"hubspot": hubspot.FormProjector{},
	}, submitter)

	d := bridge.NewDispatcher()
	b.Register(d)
	return b, d, st
}

func TestPageViewResolvesAndPersists(t *testing.T) {
	b, d, st := newTestBridge(t, nil)
	ctx := context.Background()

	d.Dispatch(ctx, bridge.Event{
		Type:      bridge.EventPageView,
		VisitorID: "v1",
		PageURL:   "https://www.acme.com/?utm_source=Google&utm_medium=CPC",
	})

	rec, err := st.Read(ctx, "v1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "google", rec.Source)
	assert.Equal(t, "cpc", rec.Medium)
	assert.Equal(t, bridge.StateResolved, b.VisitorState("v1"))
}

func TestPageViewNoChangeLeavesStoreUntouched(t *testing.T) {
	b, d, st := newTestBridge(t, nil)
	ctx := context.Background()

	require.NoError(t, st.Write(ctx, "v1", attribution.Record{Source: "google", Medium: "cpc"}))

	// Referral after explicit campaign attribution: sticky, no overwrite.
	d.Dispatch(ctx, bridge.Event{
		Type:      bridge.EventPageView,
		VisitorID: "v1",
		PageURL:   "https://www.acme.com/about",
		Referrer:  "https://partner.example/",
	})

	rec, err := st.Read(ctx, "v1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "cpc", rec.Medium)
	assert.Equal(t, bridge.StateIdle, b.VisitorState("v1"))
}

func TestFormReadyProjectsWithNotSetMarker(t *testing.T) {
	_, d, st := newTestBridge(t, nil)
	ctx := context.Background()

	require.NoError(t, st.Write(ctx, "v1", attribution.Record{Source: "google", Medium: "organic"}))

	reply := &bridge.ProjectionReply{}
	d.Dispatch(ctx, bridge.Event{
		Type:      bridge.EventFormReady,
		VisitorID: "v1",
		Widget:    "hubspot",
		Reply:     reply,
	})

	require.Len(t, reply.Fields, 7)
	byName := make(map[string]string)
	for _, f := range reply.Fields {
		byName[f.Name] = f.Value
	}
	assert.Equal(t, "google", byName["hs_utm_source"])
	assert.Equal(t, "organic", byName["hs_utm_medium"])
	// Absent sub-fields carry the marker, never a blank.
	assert.Equal(t, "not-set", byName["hs_utm_campaign"])
	assert.Equal(t, "not-set", byName["hs_utm_gclid"])
}

func TestFormReadyOrderingAfterPageView(t *testing.T) {
	_, d, _ := newTestBridge(t, nil)
	ctx := context.Background()

	// Resolve-then-store completes before the projection read in the same
	// turn: the form sees the attribution of the page view that loaded it.
	d.Dispatch(ctx, bridge.Event{
		Type:      bridge.EventPageView,
		VisitorID: "v1",
		PageURL:   "https://www.acme.com/?utm_source=Newsletter",
	})

	reply := &bridge.ProjectionReply{}
	d.Dispatch(ctx, bridge.Event{
		Type:      bridge.EventFormReady,
		VisitorID: "v1",
		Widget:    "hubspot",
		Reply:     reply,
	})

	byName := make(map[string]string)
	for _, f := range reply.Fields {
		byName[f.Name] = f.Value
	}
	assert.Equal(t, "newsletter", byName["hs_utm_source"])
}

func TestFormReadyUnknownWidgetIsNoop(t *testing.T) {
	_, d, _ := newTestBridge(t, nil)

	reply := &bridge.ProjectionReply{}
	d.Dispatch(context.Background(), bridge.Event{
		Type:      bridge.EventFormReady,
		VisitorID: "v1",
		Widget:    "typeform",
		Reply:     reply,
	})
	assert.Empty(t, reply.Fields)
}

func TestWPFormsProjectorUsesConfiguredNames(t *testing.T) {
	st := newTestStore(t)
	b := bridge.New(newTestResolver(), st, map[string]bridge.FieldProjector{
		"wpforms": pardot.NewWPFormsProjector(map[string]string{
			"utm_source": "wpforms[fields][7]",
			"utm_medium": "wpforms[fields][8]",
		}),
	}, nil)
	d := bridge.NewDispatcher()
	b.Register(d)
	ctx := context.Background()

	require.NoError(t, st.Write(ctx, "v1", attribution.Record{Source: "bing", Medium: "organic"}))

	reply := &bridge.ProjectionReply{}
	d.Dispatch(ctx, bridge.Event{
		Type:      bridge.EventFormReady,
		VisitorID: "v1",
		Widget:    "wpforms",
		Reply:     reply,
	})

	require.Len(t, reply.Fields, 2)
	assert.Equal(t, attribution.Field{Name: "wpforms[fields][7]", Value: "bing"}, reply.Fields[0])
	assert.Equal(t, attribution.Field{Name: "wpforms[fields][8]", Value: "organic"}, reply.Fields[1])
}

func TestFormSubmittedClearsRecord(t *testing.T) {
	b, d, st := newTestBridge(t, nil)
	ctx := context.Background()

	require.NoError(t, st.Write(ctx, "v1", attribution.Record{Source: "google", Medium: "cpc"}))

	d.Dispatch(ctx, bridge.Event{
		Type:      bridge.EventFormSubmitted,
		VisitorID: "v1",
		FormID:    "form-123",
	})

	rec, err := st.Read(ctx, "v1")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, bridge.StateCleared, b.VisitorState("v1"))
}

func TestBookingSucceededSubmits(t *testing.T) {
	sub := newCaptureSubmitter()
	b, d, st := newTestBridge(t, sub)
	ctx := context.Background()

	require.NoError(t, st.Write(ctx, "v1", attribution.Record{Source: "google", Medium: "cpc", GCLID: "AbC"}))

	d.Dispatch(ctx, bridge.Event{
		Type:         bridge.EventBookingSucceeded,
		VisitorID:    "v1",
		PageURL:      "https://www.acme.com/demo",
		SessionToken: "hutk-token",
		Booking:      &bridge.Booking{Email: "jane@customer.example"},
	})

	got := sub.wait(t)
	assert.Equal(t, "jane@customer.example", got.Email)
	assert.Equal(t, "hutk-token", got.SessionToken)
	assert.Equal(t, "https://www.acme.com/demo", got.PageURI)
	assert.Equal(t, "google", got.Record.Source)
	assert.False(t, got.SubmittedAt.IsZero())
	assert.Equal(t, bridge.StateSubmitted, b.VisitorState("v1"))
}

func TestBookingWithoutEmailAborts(t *testing.T) {
	sub := newCaptureSubmitter()
	b, d, _ := newTestBridge(t, sub)

	d.Dispatch(context.Background(), bridge.Event{
		Type:      bridge.EventBookingSucceeded,
		VisitorID: "v1",
		Booking:   &bridge.Booking{},
	})

	select {
	case <-sub.submissions:
		t.Fatal("submission dispatched despite missing email")
	case <-time.After(100 * time.Millisecond):
	}
	assert.NotEqual(t, bridge.StateSubmitted, b.VisitorState("v1"))
}

func TestBookingWithoutStoredRecordStillSubmits(t *testing.T) {
	sub := newCaptureSubmitter()
	_, d, _ := newTestBridge(t, sub)

	d.Dispatch(context.Background(), bridge.Event{
		Type:      bridge.EventBookingSucceeded,
		VisitorID: "v-new",
		PageURL:   "https://www.acme.com/demo",
		Booking:   &bridge.Booking{Email: "jane@customer.example"},
	})

	got := sub.wait(t)
	assert.True(t, got.Record.IsZero())
	assert.Empty(t, got.Record.Fields())
}
