package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/cropple-dashboard/internal/farm"
)

type AppConfig struct {
	Port string

	// UpstreamBaseURL is the origin serving the /api/... routes.
	UpstreamBaseURL    string
	HTTPTimeout        time.Duration
	UpstreamMaxRetries int

	// RefreshInterval controls how often a mounted dashboard is refetched.
	RefreshInterval time.Duration
	CacheTTL        time.Duration

	MaxRecommendations int

	// Optional backends; empty means in-process defaults.
	RedisURL      string
	NATSURL       string
	HistoryDBPath string

	// Snapshot archive retention.
	StoreMaxHistory int           // max number of snapshots per farm (0 = unlimited)
	StoreMaxAge     time.Duration // max age of snapshots (0 = unlimited)

	GeocoderAPIKey string
	LogLevel       string

	// Farms mounted at startup.
	Farms []farm.Farm

	// EnvFileLoaded reports whether a .env file was found.
	EnvFileLoaded bool
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	cfg.EnvFileLoaded = godotenv.Load() == nil

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.UpstreamBaseURL = getenvDefault("UPSTREAM_BASE_URL", "http://localhost:3000")
	cfg.UpstreamMaxRetries = getenvInt("UPSTREAM_MAX_RETRIES", 0)
	cfg.MaxRecommendations = getenvInt("NBA_MAX_RECOMMENDATIONS", 5)
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 288) // 24h at 5-minute intervals
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.HistoryDBPath = os.Getenv("HISTORY_DB_PATH")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.UpstreamMaxRetries < 0 {
		return nil, fmt.Errorf("invalid UPSTREAM_MAX_RETRIES: %d", cfg.UpstreamMaxRetries)
	}

	farms, err := ParseFarms(os.Getenv("FARMS"))
	if err != nil {
		return nil, err
	}
	if path := os.Getenv("FARMS_FILE"); path != "" {
		fromFile, err := LoadFarmsFile(path)
		if err != nil {
			return nil, err
		}
		farms = append(farms, fromFile...)
	}
	cfg.Farms = farms

	return cfg, nil
}

// ParseFarms parses a comma separated list of "id" or "id:lat:lon" entries.
func ParseFarms(s string) ([]farm.Farm, error) {
	var farms []farm.Farm
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		f := farm.Farm{ID: strings.TrimSpace(parts[0])}
		if f.ID == "" {
			return nil, fmt.Errorf("invalid FARMS entry %q: %w", entry, farm.ErrMissingFarmID)
		}
		switch len(parts) {
		case 1:
		case 3:
			lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			if err != nil || lat < -90 || lat > 90 {
				return nil, fmt.Errorf("invalid latitude in FARMS entry %q", entry)
			}
			lon, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
			if err != nil || lon < -180 || lon > 180 {
				return nil, fmt.Errorf("invalid longitude in FARMS entry %q", entry)
			}
			f.Latitude, f.Longitude = &lat, &lon
		default:
			return nil, fmt.Errorf("invalid FARMS entry %q: want id or id:lat:lon", entry)
		}
		farms = append(farms, f)
	}
	return farms, nil
}

type farmsFile struct {
	Farms []farm.Farm `yaml:"farms"`
}

// LoadFarmsFile reads farms from a YAML document with a top-level "farms" list.
func LoadFarmsFile(path string) ([]farm.Farm, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read FARMS_FILE: %w", err)
	}
	var doc farmsFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse FARMS_FILE %s: %w", path, err)
	}
	for i, f := range doc.Farms {
		if f.ID == "" {
			return nil, fmt.Errorf("FARMS_FILE entry %d: %w", i, farm.ErrMissingFarmID)
		}
	}
	return doc.Farms, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
