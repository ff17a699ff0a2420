// Package provider implements the Karos marketplace adapter: a
// circuit-breaker-protected HTTP invoker feeding the offer normalizer.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/example/ridesharing-adapter/internal/events"
	"github.com/example/ridesharing-adapter/internal/geometry"
	"github.com/example/ridesharing-adapter/internal/logging"
	"github.com/example/ridesharing-adapter/internal/models"
	"github.com/example/ridesharing-adapter/internal/normalize"
	"github.com/example/ridesharing-adapter/internal/observability"
)

const systemID = "karos"

// DefaultFeedPublisher is the attribution Karos requires when a deployment
// does not configure its own.
var DefaultFeedPublisher = models.FeedPublisher{
	ID:      "KAROS",
	Name:    "KAROS",
	License: "Private",
	URL:     "https://www.karos.fr/",
}

// Config carries the static construction parameters of the adapter.
// Zero values fall back to the provider defaults in applyDefaults.
type Config struct {
	ServiceURL string
	APIKey     string
	Network    string

	// FeedPublisher overrides DefaultFeedPublisher when set;
	// DisableFeedPublisher drops attribution entirely.
	FeedPublisher        *models.FeedPublisher
	DisableFeedPublisher bool

	TimeDelta       int // search window around the requested date, seconds
	Timeout         time.Duration
	DepartureRadius int
	ArrivalRadius   int

	RatingScaleMin *float64
	RatingScaleMax *float64

	BreakerFailMax      uint32
	BreakerResetTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.TimeDelta <= 0 {
		c.TimeDelta = 3600
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Second
	}
	if c.DepartureRadius <= 0 {
		c.DepartureRadius = 2
	}
	if c.ArrivalRadius <= 0 {
		c.ArrivalRadius = 2
	}
	if c.BreakerFailMax == 0 {
		c.BreakerFailMax = 4
	}
	if c.BreakerResetTimeout <= 0 {
		c.BreakerResetTimeout = 60 * time.Second
	}
}

// BreakerSnapshot is the read-only view of the circuit breaker.
type BreakerSnapshot struct {
	CurrentState string  `json:"current_state"`
	FailCounter  uint32  `json:"fail_counter"`
	ResetTimeout float64 `json:"reset_timeout"` // seconds
}

// StatusSnapshot is the operational view of one adapter instance.
type StatusSnapshot struct {
	ID              string          `json:"id"`
	Class           string          `json:"class"`
	CircuitBreaker  BreakerSnapshot `json:"circuit_breaker"`
	Network         string          `json:"network"`
	DepartureRadius int             `json:"departure_radius"`
	ArrivalRadius   int             `json:"arrival_radius"`
}

// Karos queries the Karos ridesharing marketplace and returns canonical
// journeys. One instance owns one breaker; the breaker serializes its own
// state transitions, so the adapter is safe for concurrent use.
type Karos struct {
	cfg           Config
	metadata      *models.MetaData
	feedPublisher *models.FeedPublisher
	normalizer    *normalize.Normalizer
	breaker       *gobreaker.CircuitBreaker
	client        *http.Client
	logger        *slog.Logger
	events        events.Publisher // optional
}

// NewKaros builds the adapter. logger must not be nil; publisher may be nil
// when no event stream is configured.
func NewKaros(cfg Config, logger *slog.Logger, publisher events.Publisher) *Karos {
	cfg.applyDefaults()

	metadata := &models.MetaData{
		SystemID:       systemID,
		Network:        cfg.Network,
		RatingScaleMin: cfg.RatingScaleMin,
		RatingScaleMax: cfg.RatingScaleMax,
	}

	var fp *models.FeedPublisher
	if !cfg.DisableFeedPublisher {
		pub := DefaultFeedPublisher
		if cfg.FeedPublisher != nil {
			pub = *cfg.FeedPublisher
		}
		fp = &pub
	}

	log := logging.ForService(logger, systemID)

	k := &Karos{
		cfg:           cfg,
		metadata:      metadata,
		feedPublisher: fp,
		normalizer:    normalize.New(geometry.PolylineDecoder{}, metadata),
		client:        &http.Client{Timeout: cfg.Timeout},
		logger:        log,
		events:        publisher,
	}

	k.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        systemID,
		MaxRequests: 1, // single half-open probe
		Timeout:     cfg.BreakerResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailMax
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.BreakerState.WithLabelValues(systemID).Set(breakerStateValue(to))
			log.Warn("circuit breaker state change", "from", from.String(), "to", to.String())
		},
	})
	observability.BreakerState.WithLabelValues(systemID).Set(breakerStateValue(gobreaker.StateClosed))

	return k
}

// RequestJourneys queries Karos for offers matching the route and departure
// time and normalizes them. fromCoord and toCoord are "lat,lon" strings.
// limit truncates the normalized list when positive; the upstream API has no
// limit parameter of its own.
func (k *Karos) RequestJourneys(ctx context.Context, fromCoord, toCoord string, departAt time.Time, limit int) ([]models.RidesharingJourney, error) {
	depLat, depLon, err := splitCoord(fromCoord)
	if err != nil {
		return nil, fmt.Errorf("origin: %w", err)
	}
	arrLat, arrLon, err := splitCoord(toCoord)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}

	start := time.Now()
	out, err := k.breaker.Execute(func() (interface{}, error) {
		return k.call(ctx, depLat, depLon, arrLat, arrLon, departAt)
	})
	observability.ProviderCallDuration.WithLabelValues(systemID).Observe(time.Since(start).Seconds())

	if err != nil {
		var se *ServiceError
		if errors.As(err, &se) {
			observability.ProviderCallsTotal.WithLabelValues(systemID, "http_error").Inc()
			return nil, se
		}
		observability.ProviderCallsTotal.WithLabelValues(systemID, "unavailable").Inc()
		k.logger.Error("karos service unavailable, impossible to query", "error", err)
		return nil, &ServiceUnavailableError{Cause: err}
	}
	observability.ProviderCallsTotal.WithLabelValues(systemID, "ok").Inc()

	raw, _ := out.([]models.RawOffer)
	journeys, defects := k.normalizer.Normalize(raw)
	for _, d := range defects {
		observability.MalformedOffers.WithLabelValues(systemID, d.Field).Inc()
		k.logger.Warn("offer normalized with defaulted field", "offer_id", d.OfferID, "field", d.Field, "reason", d.Reason)
	}

	observability.OffersReceived.WithLabelValues(systemID).Add(float64(len(journeys)))
	k.logger.Info("received ridesharing offers", "nb_ridesharing_offers", len(journeys))
	if k.events != nil {
		ev := events.OffersReceived{
			ServiceID:   systemID,
			Network:     k.cfg.Network,
			Origin:      fromCoord,
			Destination: toCoord,
			OfferCount:  len(journeys),
			ReceivedAt:  time.Now().Unix(),
		}
		if err := k.events.PublishOffersReceived(ctx, ev); err != nil {
			k.logger.Warn("offer event publish failed", "error", err)
		}
	}

	if limit > 0 && len(journeys) > limit {
		journeys = journeys[:limit]
	}
	return journeys, nil
}

// call performs the single timeout-bounded HTTP exchange. Errors returned
// here count as breaker failures; a 2xx with an empty body is zero offers
// and counts as success.
func (k *Karos) call(ctx context.Context, depLat, depLon, arrLat, arrLon string, departAt time.Time) ([]models.RawOffer, error) {
	ctx, cancel := context.WithTimeout(ctx, k.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.cfg.ServiceURL, nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("api_key", k.cfg.APIKey)
	q.Set("departureLat", depLat)
	q.Set("departureLng", depLon)
	q.Set("arrivalLat", arrLat)
	q.Set("arrivalLng", arrLon)
	q.Set("date", strconv.FormatInt(departAt.Unix(), 10))
	q.Set("timeDelta", strconv.Itoa(k.cfg.TimeDelta))
	q.Set("departureRadius", strconv.Itoa(k.cfg.DepartureRadius))
	q.Set("arrivalRadius", strconv.Itoa(k.cfg.ArrivalRadius))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authentication", "key="+k.cfg.APIKey)

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode/100 != 2 {
		k.logger.Error("karos api returned an error status",
			"status_code", resp.StatusCode, "reason", resp.Status, "url", req.URL.Redacted())
		return nil, &ServiceError{StatusCode: resp.StatusCode, Reason: resp.Status, Body: string(body)}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var offers []models.RawOffer
	if err := json.Unmarshal(body, &offers); err != nil {
		return nil, fmt.Errorf("decode offers: %w", err)
	}
	return offers, nil
}

// GetFeedPublisher returns the attribution record, or nil when disabled.
func (k *Karos) GetFeedPublisher() *models.FeedPublisher {
	return k.feedPublisher
}

// Status returns a read-only operational snapshot; no side effects.
func (k *Karos) Status() StatusSnapshot {
	return StatusSnapshot{
		ID:    systemID,
		Class: "Karos",
		CircuitBreaker: BreakerSnapshot{
			CurrentState: k.breaker.State().String(),
			FailCounter:  k.breaker.Counts().ConsecutiveFailures,
			ResetTimeout: k.cfg.BreakerResetTimeout.Seconds(),
		},
		Network:         k.cfg.Network,
		DepartureRadius: k.cfg.DepartureRadius,
		ArrivalRadius:   k.cfg.ArrivalRadius,
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}

// splitCoord parses a "lat,lon" pair, keeping the original string precision
// for the outbound query.
func splitCoord(coord string) (lat, lon string, err error) {
	lat, lon, ok := strings.Cut(coord, ",")
	if !ok {
		return "", "", fmt.Errorf("invalid coordinate %q, want \"lat,lon\"", coord)
	}
	lat, lon = strings.TrimSpace(lat), strings.TrimSpace(lon)
	if _, err := strconv.ParseFloat(lat, 64); err != nil {
		return "", "", fmt.Errorf("invalid latitude %q", lat)
	}
	if _, err := strconv.ParseFloat(lon, 64); err != nil {
		return "", "", fmt.Errorf("invalid longitude %q", lon)
	}
	return lat, lon, nil
}
