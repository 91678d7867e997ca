package config

// env.go - configuration overlay from environment variables.
//
// Every supported variable uses the FTPSESSION_ prefix. Booleans accept
// 1/true/yes and 0/false/no (case-insensitive); anything else, like an
// empty value, leaves the setting alone.

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFromEnv overlays environment variables onto cfg. Only set, non-empty
// and well-formed variables override the existing value.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("FTPSESSION_SERVER"); v != "" {
		cfg.Server = v
	}
	if v := os.Getenv("FTPSESSION_USER"); v != "" {
		cfg.User = v
	}
	if v := os.Getenv("FTPSESSION_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("FTPSESSION_LANG"); v != "" {
		cfg.Language = v
	}
	if v := os.Getenv("FTPSESSION_MODE"); v != "" {
		cfg.Mode = v
	}
	if v, ok := envBool("FTPSESSION_PASSIVE"); ok {
		cfg.Passive = v
	}
	if v, ok := envBool("FTPSESSION_AUTO_DISCONNECT"); ok {
		cfg.AutoDisconnect = v
	}
	if v := os.Getenv("FTPSESSION_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v, ok := envInt("FTPSESSION_TIMEOUT"); ok && v >= 0 {
		cfg.Timeout = time.Duration(v) * time.Second
	}
	if v, ok := envInt("FTPSESSION_BANDWIDTH_LIMIT"); ok && v >= 0 {
		cfg.BandwidthLimit = int64(v)
	}
	if v, ok := envInt("FTPSESSION_JOBS"); ok && v > 0 {
		cfg.Jobs = v
	}
	if v := os.Getenv("FTPSESSION_MESSAGES"); v != "" {
		cfg.Messages = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no":
		return false, true
	}
	return false, false
}
