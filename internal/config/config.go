// Package config loads server configuration from the environment,
// grounded on the teacher's internal/config.Config flat-struct +
// env(key, fallback) pattern, with a MergeFromDB overlay for
// operator-configurable settings.
package config

import (
	"database/sql"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port               int
	ServerSecret       string
	CredentialTTL      time.Duration
	DatabasePath       string
	CacheRoot          string
	CacheSizeCapBytes  int64
	CacheTTL           time.Duration
	VideoExtensions    []string
	MetadataAPIKey     string
	MetadataLanguage   string
	AutoEnrich         bool
	FFmpegPath         string
	FFprobePath        string
	RedisAddr          string
	SegmentDurationSec int
}

func Load() *Config {
	return &Config{
		Port:               envInt("PORT", 8080),
		ServerSecret:       env("SERVER_SECRET", "change-me-in-production"),
		CredentialTTL:      envDuration("CREDENTIAL_TTL", 7*24*time.Hour),
		DatabasePath:       env("DATABASE_PATH", "/data/mediaserver.db"),
		CacheRoot:          env("CACHE_ROOT", "/data/cache"),
		CacheSizeCapBytes:  envInt64("CACHE_SIZE_CAP_BYTES", 10*1024*1024*1024),
		CacheTTL:           envDuration("CACHE_TTL", 7*24*time.Hour),
		VideoExtensions:    envList("VIDEO_EXTENSIONS", []string{".mp4", ".mkv", ".avi", ".mov", ".m4v", ".webm", ".ts"}),
		MetadataAPIKey:     env("METADATA_API_KEY", ""),
		MetadataLanguage:   env("METADATA_LANGUAGE", "en"),
		AutoEnrich:         envBool("AUTO_ENRICH", true),
		FFmpegPath:         env("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:        env("FFPROBE_PATH", "ffprobe"),
		RedisAddr:          env("REDIS_ADDR", "localhost:6379"),
		SegmentDurationSec: envInt("HLS_SEGMENT_DURATION", 10),
	}
}

// MergeFromDB overlays operator-configurable settings (cache cap, TTL,
// metadata language) from the settings table, exactly as the teacher does.
func (c *Config) MergeFromDB(db *sql.DB) {
	rows, err := db.Query("SELECT key, value FROM settings")
	if err != nil {
		log.Printf("[config] skipping DB merge: %v", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			continue
		}
		switch key {
		case "cache_size_cap_bytes":
			if v, err := strconv.ParseInt(value, 10, 64); err == nil {
				c.CacheSizeCapBytes = v
			}
		case "cache_ttl_hours":
			if v, err := strconv.Atoi(value); err == nil {
				c.CacheTTL = time.Duration(v) * time.Hour
			}
		case "metadata_language":
			c.MetadataLanguage = value
		case "auto_enrich":
			c.AutoEnrich = value == "true"
		}
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		return strings.Split(v, ",")
	}
	return fallback
}
