package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tripwindow/internal/resolve"
	"tripwindow/internal/trips"
)

type Config struct {
	Environment       string
	DatabaseURL       string
	DatabaseName      string
	NATSURL           string
	NATSSubjectPrefix string
	HTTPAddr          string
	MetricsAddr       string
	Location          *time.Location
	SnapshotInterval  time.Duration
	QueryTimeout      time.Duration
	LogNATSSubjects   bool
	Policy            resolve.Policy
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.Environment = getenvDefault("APP_ENV", "production")

	// Database URL: prefer DATABASE_URL / PG_DSN, else build from PG* vars
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := os.Getenv("PGDATABASE")
		if db == "" {
			return nil, errors.New("PGDATABASE or DATABASE_URL must be set")
		}
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	} else {
		cfg.DatabaseURL = dsn
	}
	// Optional database override applied on top of the URL (e.g. one database per deployment)
	cfg.DatabaseName = strings.TrimSpace(os.Getenv("DATABASE_NAME"))

	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubjectPrefix = strings.Trim(getenvDefault("NATS_SUBJECT_PREFIX", "schedules"), ".")
	if cfg.NATSSubjectPrefix == "" {
		return nil, errors.New("NATS_SUBJECT_PREFIX must not be empty")
	}

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8080")
	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	// Fixed local offset; every local day and clock time is read in this zone
	loc, err := trips.ParseOffset(getenvDefault("LOCAL_UTC_OFFSET", "+05:30"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOCAL_UTC_OFFSET: %w", err)
	}
	cfg.Location = loc

	if cfg.SnapshotInterval, err = durationEnv("SNAPSHOT_INTERVAL_SEC", time.Second, 5*time.Minute, true); err != nil {
		return nil, err
	}
	if cfg.QueryTimeout, err = durationEnv("QUERY_TIMEOUT_SEC", time.Second, 15*time.Second, false); err != nil {
		return nil, err
	}

	// Debug logging for NATS publish subjects
	cfg.LogNATSSubjects = parseBool(os.Getenv("LOG_NATS_SUBJECTS"), false)

	policy := resolve.DefaultPolicy()
	if path := os.Getenv("POLICY_FILE"); path != "" {
		if err := LoadPolicyFile(path, &policy); err != nil {
			return nil, err
		}
	}
	if err := applyPolicyEnv(&policy); err != nil {
		return nil, err
	}
	cfg.Policy = policy

	return cfg, nil
}

// PolicyFile is the YAML layout of POLICY_FILE. Absent keys keep the current value.
type PolicyFile struct {
	ScheduledWindowMinutes *int  `yaml:"scheduled_window_minutes" validate:"omitempty,min=1,max=720"`
	SpanWindowMinutes      *int  `yaml:"span_window_minutes" validate:"omitempty,min=0,max=720"`
	DerivedPaddingMinutes  *int  `yaml:"derived_padding_minutes" validate:"omitempty,min=0,max=720"`
	ClusterBucketHours     *int  `yaml:"cluster_bucket_hours" validate:"omitempty,min=1,max=24"`
	DegradedFallback       *bool `yaml:"degraded_fallback"`
}

// LoadPolicyFile reads and validates a policy file, applying it over p.
func LoadPolicyFile(path string, p *resolve.Policy) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read POLICY_FILE: %w", err)
	}
	var f PolicyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse POLICY_FILE %s: %w", path, err)
	}
	if err := validator.New().Struct(f); err != nil {
		return fmt.Errorf("invalid POLICY_FILE %s: %w", path, err)
	}
	if f.ScheduledWindowMinutes != nil {
		p.ScheduledWindow = time.Duration(*f.ScheduledWindowMinutes) * time.Minute
	}
	if f.SpanWindowMinutes != nil {
		p.SpanWindow = time.Duration(*f.SpanWindowMinutes) * time.Minute
	}
	if f.DerivedPaddingMinutes != nil {
		p.DerivedPadding = time.Duration(*f.DerivedPaddingMinutes) * time.Minute
	}
	if f.ClusterBucketHours != nil {
		p.BucketHours = *f.ClusterBucketHours
	}
	if f.DegradedFallback != nil {
		p.DegradedFallback = *f.DegradedFallback
	}
	return nil
}

func applyPolicyEnv(p *resolve.Policy) error {
	var err error
	if p.ScheduledWindow, err = durationEnv("SCHEDULED_WINDOW_MINUTES", time.Minute, p.ScheduledWindow, false); err != nil {
		return err
	}
	if p.SpanWindow, err = durationEnv("SPAN_WINDOW_MINUTES", time.Minute, p.SpanWindow, true); err != nil {
		return err
	}
	if p.DerivedPadding, err = durationEnv("DERIVED_PADDING_MINUTES", time.Minute, p.DerivedPadding, true); err != nil {
		return err
	}
	if v := os.Getenv("CLUSTER_BUCKET_HOURS"); v != "" {
		h, err := strconv.Atoi(v)
		if err != nil || h < 1 || h > 24 {
			return fmt.Errorf("invalid CLUSTER_BUCKET_HOURS: %q", v)
		}
		p.BucketHours = h
	}
	p.DegradedFallback = parseBool(os.Getenv("DEGRADED_FALLBACK"), p.DegradedFallback)
	return nil
}

// durationEnv reads an integer count of unit from key. Zero is accepted only
// when allowZero is set.
func durationEnv(key string, unit, def time.Duration, allowZero bool) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 || (n == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(n) * unit, nil
}

func parseBool(v string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		return def
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
