// Package config loads the gallery service settings from the environment and
// an optional YAML tuning file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/example/trig-gallery/services/gallery/internal/history"
	"github.com/example/trig-gallery/services/gallery/internal/paginator"
)

type HistoryConfig struct {
	RedisURL    string
	DatabaseURL string
	SQLitePath  string
	Dir         string
}

type Config struct {
	PhotoAPIBaseURL string
	// UpstreamRPS caps requests per second to the photo API; 0 disables it.
	UpstreamRPS int
	// JWTSecret is optional. When empty the visitor is taken from the
	// X-Visitor-Id header.
	JWTSecret []byte
	NATSURL   string
	CacheSize int
	History   HistoryConfig
	// VisitorRPS and VisitorBurst limit gallery requests per visitor; a
	// non-positive rate disables the limiter.
	VisitorRPS   float64
	VisitorBurst int

	Tuning     paginator.Tuning
	Tolerances history.Tolerances
}

// Tuning is the layout of GALLERY_TUNING_FILE. Absent keys keep defaults.
type Tuning struct {
	Paginator paginator.Tuning   `yaml:"paginator"`
	History   history.Tolerances `yaml:"history"`
}

func defaultTuning() Tuning {
	return Tuning{Paginator: paginator.DefaultTuning(), History: history.DefaultTolerances()}
}

func Load() (Config, error) {
	base := strings.TrimSpace(os.Getenv("PHOTO_API_BASE_URL"))
	if base == "" {
		return Config{}, errors.New("PHOTO_API_BASE_URL is required")
	}
	rps, err := intEnv("PHOTO_API_RPS", 0)
	if err != nil {
		return Config{}, err
	}
	cacheSize, err := intEnv("GALLERY_CACHE_SIZE", paginator.DefaultCacheSize)
	if err != nil {
		return Config{}, err
	}

	visitorRPS, err := floatEnv("GALLERY_VISITOR_RPS", 0)
	if err != nil {
		return Config{}, err
	}
	visitorBurst, err := intEnv("GALLERY_VISITOR_BURST", 10)
	if err != nil {
		return Config{}, err
	}

	t := defaultTuning()
	if path := strings.TrimSpace(os.Getenv("GALLERY_TUNING_FILE")); path != "" {
		t, err = LoadTuningFile(path)
		if err != nil {
			return Config{}, err
		}
	}
	pageSize, err := intEnv("GALLERY_PAGE_SIZE", 0)
	if err != nil {
		return Config{}, err
	}
	if pageSize > 0 {
		t.Paginator.PageSize = pageSize
	}

	cfg := Config{
		PhotoAPIBaseURL: base,
		UpstreamRPS:     rps,
		NATSURL:         strings.TrimSpace(os.Getenv("NATS_URL")),
		CacheSize:       cacheSize,
		VisitorRPS:      visitorRPS,
		VisitorBurst:    visitorBurst,
		History: HistoryConfig{
			RedisURL:    strings.TrimSpace(os.Getenv("HISTORY_REDIS_URL")),
			DatabaseURL: strings.TrimSpace(os.Getenv("HISTORY_DATABASE_URL")),
			SQLitePath:  strings.TrimSpace(os.Getenv("HISTORY_SQLITE_PATH")),
			Dir:         strings.TrimSpace(os.Getenv("HISTORY_DIR")),
		},
		Tuning:     t.Paginator.WithDefaults(),
		Tolerances: t.History,
	}
	if secret := strings.TrimSpace(os.Getenv("JWT_SECRET")); secret != "" {
		cfg.JWTSecret = []byte(secret)
	}
	return cfg, nil
}

// LoadTuningFile reads a YAML tuning file over the defaults.
func LoadTuningFile(path string) (Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("read tuning file: %w", err)
	}
	t := defaultTuning()
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tuning{}, fmt.Errorf("parse tuning file %s: %w", path, err)
	}
	// below 1 touching ranges such as 1-10 and 11-20 would stay apart
	if t.History.Adjacent < 1 || t.History.Compact < 1 {
		return Tuning{}, fmt.Errorf("tuning file %s: merge tolerances must be >= 1", path)
	}
	return t, nil
}

func intEnv(name string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", name, v)
	}
	return n, nil
}

func floatEnv(name string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("%s must be a non-negative number, got %q", name, v)
	}
	return f, nil
}
