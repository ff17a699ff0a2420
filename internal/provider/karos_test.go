package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/ridesharing-adapter/internal/events"
	"github.com/example/ridesharing-adapter/internal/models"
)

const offerJSON = `[
  {
    "id": "fe08fceb-03a2-4dc6-8ba4-b422c1256227",
    "availableSeats": 3,
    "driver": {"firstName": "caroline", "gender": "F", "grade": 5},
    "departureToPickupWalkingTime": 174,
    "departureToPickupWalkingDistance": 475,
    "dropoffToArrivalWalkingTime": 76,
    "dropoffToArrivalWalkingDistance": 1237,
    "distance": 18869,
    "duration": 1301,
    "driverDepartureDate": 1601988149,
    "journeyPolyline": "svr_H}fyC{@g@[[",
    "price": {"amount": 1.0, "type": "PAYING"},
    "webUrl": "https://koroslines.com"
  }
]`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type capturingPublisher struct {
	received []events.OffersReceived
}

func (c *capturingPublisher) PublishOffersReceived(_ context.Context, ev events.OffersReceived) error {
	c.received = append(c.received, ev)
	return nil
}

func (c *capturingPublisher) Close() error { return nil }

func newTestKaros(url string, pub events.Publisher, mutate func(*Config)) *Karos {
	cfg := Config{
		ServiceURL: url,
		APIKey:     "key",
		Network:    "Super Covoit",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewKaros(cfg, testLogger(), pub)
}

func TestRequestJourneysSuccess(t *testing.T) {
	var gotQuery map[string]string
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authentication")
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Write([]byte(offerJSON))
	}))
	defer srv.Close()

	pub := &capturingPublisher{}
	k := newTestKaros(srv.URL, pub, nil)

	departAt := time.Unix(1601988000, 0)
	journeys, err := k.RequestJourneys(context.Background(), "48.109377,-1.682103", "48.020335,-1.743929", departAt, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(journeys) != 1 {
		t.Fatalf("expected 1 journey, got %d", len(journeys))
	}

	if gotAuth != "key=key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	want := map[string]string{
		"api_key":         "key",
		"departureLat":    "48.109377",
		"departureLng":    "-1.682103",
		"arrivalLat":      "48.020335",
		"arrivalLng":      "-1.743929",
		"date":            "1601988000",
		"timeDelta":       "3600",
		"departureRadius": "2",
		"arrivalRadius":   "2",
	}
	for key, val := range want {
		if gotQuery[key] != val {
			t.Errorf("query %s = %q, want %q", key, gotQuery[key], val)
		}
	}

	j := journeys[0]
	if j.PickupDateTime != 1601988149 || j.Price != 100 || j.Currency != "centime" {
		t.Errorf("normalized journey off: pickup=%d price=%d %s", j.PickupDateTime, j.Price, j.Currency)
	}

	if len(pub.received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.received))
	}
	ev := pub.received[0]
	if ev.ServiceID != "karos" || ev.OfferCount != 1 || ev.Origin != "48.109377,-1.682103" {
		t.Errorf("event = %+v", ev)
	}
}

func TestNon2xxSurfacesServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream maintenance", http.StatusBadGateway)
	}))
	defer srv.Close()

	k := newTestKaros(srv.URL, nil, nil)
	_, err := k.RequestJourneys(context.Background(), "1,2", "3,4", time.Now(), 0)

	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if se.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d", se.StatusCode)
	}
	if se.Body != "upstream maintenance\n" {
		t.Errorf("body = %q", se.Body)
	}
	if got := k.Status().CircuitBreaker.FailCounter; got != 1 {
		t.Errorf("fail counter = %d, want 1", got)
	}
}

func TestEmptyBodyMeansZeroOffers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	k := newTestKaros(srv.URL, nil, nil)
	journeys, err := k.RequestJourneys(context.Background(), "1,2", "3,4", time.Now(), 0)
	if err != nil {
		t.Fatalf("empty body must not be an error: %v", err)
	}
	if len(journeys) != 0 {
		t.Fatalf("expected 0 journeys, got %d", len(journeys))
	}
	if got := k.Status().CircuitBreaker.FailCounter; got != 0 {
		t.Errorf("empty body is a success, fail counter = %d", got)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	k := newTestKaros(srv.URL, nil, func(c *Config) {
		c.BreakerFailMax = 2
		c.BreakerResetTimeout = time.Minute
	})

	for i := 0; i < 2; i++ {
		if _, err := k.RequestJourneys(context.Background(), "1,2", "3,4", time.Now(), 0); err == nil {
			t.Fatalf("call %d should fail", i)
		}
	}
	if got := k.Status().CircuitBreaker.CurrentState; got != "open" {
		t.Fatalf("breaker state = %q, want open", got)
	}

	// Open breaker fails fast without touching the network.
	_, err := k.RequestJourneys(context.Background(), "1,2", "3,4", time.Now(), 0)
	var su *ServiceUnavailableError
	if !errors.As(err, &su) {
		t.Fatalf("expected ServiceUnavailableError, got %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("open breaker must not call upstream, hits = %d", hits.Load())
	}
}

func TestBreakerRecoversAfterResetTimeout(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(offerJSON))
	}))
	defer srv.Close()

	k := newTestKaros(srv.URL, nil, func(c *Config) {
		c.BreakerFailMax = 1
		c.BreakerResetTimeout = 50 * time.Millisecond
	})

	if _, err := k.RequestJourneys(context.Background(), "1,2", "3,4", time.Now(), 0); err == nil {
		t.Fatal("first call should fail")
	}
	if got := k.Status().CircuitBreaker.CurrentState; got != "open" {
		t.Fatalf("breaker state = %q, want open", got)
	}

	fail.Store(false)
	time.Sleep(80 * time.Millisecond)

	journeys, err := k.RequestJourneys(context.Background(), "1,2", "3,4", time.Now(), 0)
	if err != nil {
		t.Fatalf("half-open probe should succeed: %v", err)
	}
	if len(journeys) != 1 {
		t.Fatalf("expected 1 journey, got %d", len(journeys))
	}
	st := k.Status().CircuitBreaker
	if st.CurrentState != "closed" || st.FailCounter != 0 {
		t.Fatalf("breaker should be closed and reset, got %+v", st)
	}
}

func TestTransportTimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	k := newTestKaros(srv.URL, nil, func(c *Config) {
		c.Timeout = 20 * time.Millisecond
	})

	_, err := k.RequestJourneys(context.Background(), "1,2", "3,4", time.Now(), 0)
	var su *ServiceUnavailableError
	if !errors.As(err, &su) {
		t.Fatalf("expected ServiceUnavailableError, got %v", err)
	}
}

func TestLimitTruncates(t *testing.T) {
	three := "[" + offerJSON[1:len(offerJSON)-1] + "," + offerJSON[1:len(offerJSON)-1] + "," + offerJSON[1:len(offerJSON)-1] + "]"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(three))
	}))
	defer srv.Close()

	k := newTestKaros(srv.URL, nil, nil)
	journeys, err := k.RequestJourneys(context.Background(), "1,2", "3,4", time.Now(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(journeys) != 2 {
		t.Fatalf("expected limit to truncate to 2, got %d", len(journeys))
	}
}

func TestInvalidCoordinateRejectedBeforeCall(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	k := newTestKaros(srv.URL, nil, nil)
	for _, coord := range []string{"not-a-coord", "48.1;1.6", "abc,1.6", "48.1,xyz"} {
		if _, err := k.RequestJourneys(context.Background(), coord, "1,2", time.Now(), 0); err == nil {
			t.Errorf("coordinate %q should be rejected", coord)
		}
	}
	if hits.Load() != 0 {
		t.Errorf("invalid coordinates must not reach the network, hits = %d", hits.Load())
	}
}

func TestFeedPublisher(t *testing.T) {
	k := newTestKaros("http://example.invalid", nil, nil)
	fp := k.GetFeedPublisher()
	if fp == nil || fp.ID != "KAROS" || fp.License != "Private" {
		t.Errorf("default feed publisher = %+v", fp)
	}

	custom := newTestKaros("http://example.invalid", nil, func(c *Config) {
		c.FeedPublisher = &models.FeedPublisher{ID: "42", Name: "42", License: "I dunno", URL: "http://w.tf"}
	})
	if got := custom.GetFeedPublisher(); got == nil || got.ID != "42" || got.License != "I dunno" {
		t.Errorf("configured feed publisher = %+v", got)
	}

	disabled := newTestKaros("http://example.invalid", nil, func(c *Config) {
		c.DisableFeedPublisher = true
	})
	if disabled.GetFeedPublisher() != nil {
		t.Errorf("disabled feed publisher should be nil")
	}
}

func TestStatusSnapshot(t *testing.T) {
	k := newTestKaros("http://example.invalid", nil, func(c *Config) {
		c.DepartureRadius = 5
		c.ArrivalRadius = 3
		c.BreakerResetTimeout = 30 * time.Second
	})
	st := k.Status()
	if st.ID != "karos" || st.Class != "Karos" || st.Network != "Super Covoit" {
		t.Errorf("snapshot = %+v", st)
	}
	if st.DepartureRadius != 5 || st.ArrivalRadius != 3 {
		t.Errorf("radii = %d/%d", st.DepartureRadius, st.ArrivalRadius)
	}
	if st.CircuitBreaker.CurrentState != "closed" || st.CircuitBreaker.ResetTimeout != 30 {
		t.Errorf("breaker snapshot = %+v", st.CircuitBreaker)
	}
}
