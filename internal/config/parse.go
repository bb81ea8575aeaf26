package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Env parse helpers. Malformed values fall back to the default; validation
// catches the semantic problems afterwards.

// ParseString returns the env value for key, or defaultVal when unset.
func ParseString(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

// ParseBool returns the boolean env value for key, or defaultVal when unset
// or unparseable.
func ParseBool(key string, defaultVal bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return defaultVal
	}
	return b
}

// ParseInt returns the integer env value for key, or defaultVal when unset
// or unparseable.
func ParseInt(key string, defaultVal int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return defaultVal
	}
	return n
}

// ParseDuration returns the duration env value for key, or defaultVal when
// unset or unparseable.
func ParseDuration(key string, defaultVal time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return defaultVal
	}
	return d
}

// ParseFloat returns the float env value for key, or defaultVal when unset
// or unparseable.
func ParseFloat(key string, defaultVal float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return defaultVal
	}
	return f
}

// ParseStringSlice returns the comma-separated env value for key, or
// defaultVal when unset. Empty elements are dropped.
func ParseStringSlice(key string, defaultVal []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
