package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern; a trailing "/" makes it a prefix
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// LoadConfig loads rate limiting configuration from the process environment.
func LoadConfig() *Config {
	return LoadConfigFrom(os.LookupEnv)
}

// LoadConfigFrom loads rate limiting configuration through lookup.
func LoadConfigFrom(lookup func(string) (string, bool)) *Config {
	env := envReader(lookup)
	if !env.bool("RATE_LIMIT_ENABLED", true) {
		return &Config{Enabled: false}
	}
	return &Config{
		Enabled:         true,
		DefaultLimit:    env.int("RATE_LIMIT_DEFAULT_LIMIT", 1000),
		DefaultWindow:   env.duration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: env.duration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Whitelist:       parseIPList(env.string("RATE_LIMIT_WHITELIST", "")),
		Blacklist:       parseIPList(env.string("RATE_LIMIT_BLACKLIST", "")),
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Tier 1: model calls and outbound fetches
		{Path: "/tasks/", Method: "POST", Limit: 60, Window: time.Hour, Burst: 10},
		{Path: "/samples/", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},
		{Path: "/channels/", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},

		// Tier 2: credential endpoints
		{Path: "/auth/login", Method: "POST", Limit: 10, Window: time.Minute, Burst: 5},
		{Path: "/auth/register", Method: "POST", Limit: 5, Window: time.Hour, Burst: 2},

		// Tier 3: plain writes
		{Path: "/tasks", Method: "POST", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/channels", Method: "POST", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/materials", Method: "POST", Limit: 100, Window: time.Minute, Burst: 20},
		{Path: "/channels/", Method: "PUT", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/samples/", Method: "PUT", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/tasks/", Method: "DELETE", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/channels/", Method: "DELETE", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/samples/", Method: "DELETE", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/materials/", Method: "DELETE", Limit: 100, Window: time.Minute, Burst: 10},

		// Reads use the default limit; /health is unlimited (see MatchEndpoint)
	}
}

type envReader func(string) (string, bool)

func (e envReader) string(key, defaultValue string) string {
	if value, ok := e(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func (e envReader) int(key string, defaultValue int) int {
	if v, err := strconv.Atoi(e.string(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func (e envReader) bool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(e.string(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func (e envReader) duration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(e.string(key, "")); err == nil {
		return v
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of IP addresses into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
