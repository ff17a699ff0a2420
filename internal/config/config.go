package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the adapter process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup. Provider defaults
// (timeDelta, radii, breaker tuning) match the upstream integration values.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	KarosServiceURL string
	KarosAPIKey     string
	KarosNetwork    string
	KarosTimeDelta  int // seconds
	KarosTimeout    time.Duration
	DepartureRadius int
	ArrivalRadius   int
	RatingScaleMin  *float64
	RatingScaleMax  *float64

	BreakerFailMax      int
	BreakerResetTimeout time.Duration

	// FeedPublisher* configure attribution; FeedPublisherID "none"
	// disables it entirely.
	FeedPublisherID      string
	FeedPublisherName    string
	FeedPublisherLicense string
	FeedPublisherURL     string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:            ":8080",
		ReadTimeout:         5 * time.Second,
		WriteTimeout:        10 * time.Second,
		IdleTimeout:         120 * time.Second,
		ShutdownTimeout:     15 * time.Second,
		KarosNetwork:        "karos",
		KarosTimeDelta:      3600,
		KarosTimeout:        2 * time.Second,
		DepartureRadius:     2,
		ArrivalRadius:       2,
		BreakerFailMax:      4,
		BreakerResetTimeout: 60 * time.Second,
		KafkaTopic:          "ridesharing-offer-events",
		LogLevel:            "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	setStringFromEnv(&cfg.KarosServiceURL, "KAROS_SERVICE_URL")
	cfg.KarosAPIKey = os.Getenv("KAROS_API_KEY")
	setStringFromEnv(&cfg.KarosNetwork, "KAROS_NETWORK")
	setIntFromEnv(&cfg.KarosTimeDelta, "KAROS_TIMEDELTA", &errs)
	setDurationFromEnv(&cfg.KarosTimeout, "KAROS_TIMEOUT", &errs)
	setIntFromEnv(&cfg.DepartureRadius, "KAROS_DEPARTURE_RADIUS", &errs)
	setIntFromEnv(&cfg.ArrivalRadius, "KAROS_ARRIVAL_RADIUS", &errs)
	cfg.RatingScaleMin = optionalFloatFromEnv("KAROS_RATING_SCALE_MIN", &errs)
	cfg.RatingScaleMax = optionalFloatFromEnv("KAROS_RATING_SCALE_MAX", &errs)

	setIntFromEnv(&cfg.BreakerFailMax, "CIRCUIT_BREAKER_MAX_KAROS_FAIL", &errs)
	setDurationFromEnv(&cfg.BreakerResetTimeout, "CIRCUIT_BREAKER_KAROS_TIMEOUT", &errs)

	setStringFromEnv(&cfg.FeedPublisherID, "FEED_PUBLISHER_ID")
	setStringFromEnv(&cfg.FeedPublisherName, "FEED_PUBLISHER_NAME")
	setStringFromEnv(&cfg.FeedPublisherLicense, "FEED_PUBLISHER_LICENSE")
	setStringFromEnv(&cfg.FeedPublisherURL, "FEED_PUBLISHER_URL")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.KarosServiceURL == "" {
		errs = append(errs, fmt.Errorf("KAROS_SERVICE_URL must be set"))
	}
	if cfg.BreakerFailMax <= 0 {
		errs = append(errs, fmt.Errorf("CIRCUIT_BREAKER_MAX_KAROS_FAIL must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func optionalFloatFromEnv(key string, errs *[]error) *float64 {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return nil
	}
	return &f
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
