// The consumer folds the adapter's offer-event stream into the search audit
// store, so a deployment can run the HTTP adapter stateless and keep the
// audit trail in one place.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/example/ridesharing-adapter/internal/events"
	"github.com/example/ridesharing-adapter/internal/storage"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_offer_events_consumed_total",
		Help: "Total offer events consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_offer_events_invalid_total",
		Help: "Total invalid messages received",
	})
	auditWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_audit_writes_total",
		Help: "Total successful audit store writes",
	})
	auditErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_audit_errors_total",
		Help: "Total audit store errors",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, auditWrites, auditErrors)
}

func main() {
	// allow some flags for local runs
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	brokersEnv := os.Getenv("KAFKA_BROKERS")
	if brokersEnv == "" {
		brokersEnv = os.Getenv("KAFKA_BROKER")
	}
	brokers := []string{}
	if brokersEnv != "" {
		for _, b := range strings.Split(brokersEnv, ",") {
			if s := strings.TrimSpace(b); s != "" {
				brokers = append(brokers, s)
			}
		}
	} else {
		brokers = []string{"localhost:9092"}
	}

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "ridesharing-offer-events"
	}
	group := os.Getenv("KAFKA_GROUP")
	if group == "" {
		group = "ridesharing-adapter-consumer"
	}

	var store storage.SearchLog
	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		pg, err := storage.NewPostgresLog(dsn)
		if err != nil {
			log.Fatalf("postgres open error: %v", err)
		}
		defer pg.Close()
		store = pg
	} else {
		store = storage.NewMemoryLog()
	}

	// start metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		log.Printf("metrics/health listening on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
	}()

	log.Printf("consumer listening topic=%s brokers=%v group=%s", topic, brokers, group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("shutting down consumer")
				return
			}
			log.Printf("kafka read error: %v; backing off %s", err, backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		// reset backoff on success
		backoff = time.Second

		msgsConsumed.Inc()

		var ev events.OffersReceived
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			msgsInvalid.Inc()
			log.Printf("invalid message: %v", err)
			continue
		}

		if err := recordWithRetry(ctx, store, &ev, 3, 200*time.Millisecond); err != nil {
			auditErrors.Inc()
			log.Printf("audit write failed for service=%s: %v", ev.ServiceID, err)
			continue
		}
		auditWrites.Inc()
	}
}

// recordWithRetry persists one offer event with retry/backoff; transient
// store errors should not drop audit rows.
func recordWithRetry(ctx context.Context, store storage.SearchLog, ev *events.OffersReceived, attempts int, delay time.Duration) error {
	rec := storage.SearchRecord{
		ServiceID:   ev.ServiceID,
		Origin:      ev.Origin,
		Destination: ev.Destination,
		Outcome:     "ok",
		OfferCount:  ev.OfferCount,
		RequestedAt: time.Unix(ev.ReceivedAt, 0),
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if lastErr = store.Record(rec); lastErr == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return lastErr
}
