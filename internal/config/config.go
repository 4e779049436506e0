// Package config loads server configuration in layers: built-in defaults,
// an optional YAML file, environment variables, and finally a DB-backed
// override for the handful of fields operators tune at runtime.
package config

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/reelhaven/mediaserver/internal/transcode"
)

type Config struct {
	Port         int    `koanf:"port"`
	DataDir      string `koanf:"data_dir"`
	DatabasePath string `koanf:"database_path"`
	RedisAddr    string `koanf:"redis_addr"`
	JWTSecret    string `koanf:"jwt_secret"`

	FFmpegPath  string `koanf:"ffmpeg_path"`
	FFprobePath string `koanf:"ffprobe_path"`

	MaxTranscodes int               `koanf:"max_transcodes"`
	HWAccel       transcode.HWAccel `koanf:"hw_accel"`

	StreamTokenTTL time.Duration `koanf:"stream_token_ttl"`

	CORSOrigins []string `koanf:"cors_origins"`
}

func defaultConfig() *Config {
	return &Config{
		Port:           8096,
		DataDir:        "./data",
		DatabasePath:   "./data/mediaserver.db",
		RedisAddr:      "127.0.0.1:6379",
		JWTSecret:      "",
		FFmpegPath:     "ffmpeg",
		FFprobePath:    "ffprobe",
		MaxTranscodes:  4,
		HWAccel:        transcode.HWAccelNone,
		StreamTokenTTL: 6 * time.Hour,
		CORSOrigins:    []string{"*"},
	}
}

// ConfigPathEnvVar overrides the YAML config file location searched by Load.
const ConfigPathEnvVar = "MEDIASERVER_CONFIG_PATH"

// Load merges defaults, an optional YAML file, and MEDIASERVER_-prefixed
// environment variables, in that order of increasing precedence.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider("MEDIASERVER_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "MEDIASERVER_"))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	if v, ok := k.Get("cors_origins").(string); ok && v != "" {
		if err := k.Set("cors_origins", strings.Split(v, ",")); err != nil {
			return nil, fmt.Errorf("config: split cors_origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range []string{"mediaserver.yaml", "mediaserver.yml", "/etc/mediaserver/config.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// MergeFromDB applies the runtime-tunable override rows from the settings
// table, matching the teacher's Config.MergeFromDB in spirit: only
// max_transcodes and hw_accel are operator-adjustable without a
// restart-and-reload of the YAML file.
func (c *Config) MergeFromDB(db *sql.DB) error {
	rows, err := db.Query(`SELECT key, value FROM settings WHERE key IN ('max_transcodes', 'hw_accel')`)
	if err != nil {
		return fmt.Errorf("config: query settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("config: scan settings row: %w", err)
		}
		switch key {
		case "max_transcodes":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("config: settings.max_transcodes: %w", err)
			}
			c.MaxTranscodes = n
		case "hw_accel":
			c.HWAccel = transcode.HWAccel(value)
		}
	}
	return rows.Err()
}
