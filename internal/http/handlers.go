package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ridesharing-adapter/internal/models"
	"github.com/example/ridesharing-adapter/internal/provider"
	"github.com/example/ridesharing-adapter/internal/storage"
)

// JourneyService is the adapter surface the API consumes; the Karos adapter
// implements it, and tests stub it.
type JourneyService interface {
	RequestJourneys(ctx context.Context, fromCoord, toCoord string, departAt time.Time, limit int) ([]models.RidesharingJourney, error)
	GetFeedPublisher() *models.FeedPublisher
	Status() provider.StatusSnapshot
}

type Server struct {
	Service   JourneyService
	SearchLog storage.SearchLog
	logger    *slog.Logger
	mux       *mux.Router
}

func NewServer(svc JourneyService, searchLog storage.SearchLog, logger *slog.Logger) *Server {
	s := &Server{Service: svc, SearchLog: searchLog, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/ridesharing/journeys", s.handleJourneys).Methods("GET")
	s.mux.HandleFunc("/api/v1/ridesharing/status", s.handleStatus).Methods("GET")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type journeysResponse struct {
	Journeys      []models.RidesharingJourney `json:"journeys"`
	FeedPublisher *models.FeedPublisher       `json:"feed_publisher"`
}

type errorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// handleJourneys serves GET /api/v1/ridesharing/journeys?from=lat,lon&to=lat,lon
// with optional datetime (epoch seconds, default now) and limit parameters.
func (s *Server) handleJourneys(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "from and to are required"})
		return
	}

	departAt := time.Now()
	if v := q.Get("datetime"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "datetime must be epoch seconds"})
			return
		}
		departAt = time.Unix(ts, 0)
	}

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	journeys, err := s.Service.RequestJourneys(r.Context(), from, to, departAt, limit)
	s.recordSearch(from, to, journeys, err)
	if err != nil {
		var se *provider.ServiceError
		var su *provider.ServiceUnavailableError
		switch {
		case errors.As(err, &su):
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "ridesharing service unavailable"})
		case errors.As(err, &se):
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "ridesharing service error", StatusCode: se.StatusCode, Reason: se.Reason})
		default:
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, journeysResponse{Journeys: journeys, FeedPublisher: s.Service.GetFeedPublisher()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Service.Status())
}

// recordSearch appends one audit row per provider invocation, best effort.
func (s *Server) recordSearch(from, to string, journeys []models.RidesharingJourney, err error) {
	if s.SearchLog == nil {
		return
	}
	rec := storage.SearchRecord{
		ServiceID:   s.Service.Status().ID,
		Origin:      from,
		Destination: to,
		Outcome:     "ok",
		OfferCount:  len(journeys),
		RequestedAt: time.Now(),
	}
	if err != nil {
		var se *provider.ServiceError
		var su *provider.ServiceUnavailableError
		switch {
		case errors.As(err, &se):
			rec.Outcome = "http_error"
		case errors.As(err, &su):
			rec.Outcome = "unavailable"
		default:
			rec.Outcome = "invalid"
		}
	}
	if logErr := s.SearchLog.Record(rec); logErr != nil {
		s.logger.Warn("search audit write failed", "error", logErr)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
