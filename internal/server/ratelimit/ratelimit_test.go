package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testLimiter(cfg *Config) (*Limiter, *clock) {
	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	if cfg.Whitelist == nil {
		cfg.Whitelist = map[string]bool{}
	}
	if cfg.Blacklist == nil {
		cfg.Blacklist = map[string]bool{}
	}
	l := NewLimiter(cfg)
	l.now = c.now
	return l, c
}

func TestLimiter_Allow(t *testing.T) {
	l, _ := testLimiter(&Config{Enabled: true, DefaultLimit: 5, DefaultWindow: time.Minute})
	defer l.Stop()

	for i := 0; i < 5; i++ {
		allowed, info := l.Allow("10.0.0.1", "/tasks", "GET")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 5, info.Limit)
		assert.Equal(t, 4-i, info.Remaining)
	}

	allowed, info := l.Allow("10.0.0.1", "/tasks", "GET")
	assert.False(t, allowed)
	assert.Positive(t, info.RetryAfter)

	allowed, _ = l.Allow("10.0.0.2", "/tasks", "GET")
	assert.True(t, allowed, "clients have separate buckets")
}

func TestLimiter_Refill(t *testing.T) {
	l, c := testLimiter(&Config{Enabled: true, DefaultLimit: 60, DefaultWindow: time.Minute})
	defer l.Stop()

	for i := 0; i < 60; i++ {
		l.Allow("c", "/x", "GET")
	}
	allowed, _ := l.Allow("c", "/x", "GET")
	require.False(t, allowed)

	c.advance(time.Second)
	allowed, _ = l.Allow("c", "/x", "GET")
	assert.True(t, allowed, "one token per second refills")
	allowed, _ = l.Allow("c", "/x", "GET")
	assert.False(t, allowed)
}

func TestLimiter_Lists(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
		client string
		want   bool
	}{
		{name: "disabled", config: &Config{Enabled: false}, client: "a", want: true},
		{name: "whitelisted", config: &Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Hour, Whitelist: map[string]bool{"a": true}}, client: "a", want: true},
		{name: "blacklisted", config: &Config{Enabled: true, DefaultLimit: 100, DefaultWindow: time.Hour, Blacklist: map[string]bool{"a": true}}, client: "a", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := testLimiter(tt.config)
			defer l.Stop()
			for i := 0; i < 3; i++ {
				allowed, _ := l.Allow(tt.client, "/tasks", "GET")
				assert.Equal(t, tt.want, allowed)
			}
		})
	}
}

func TestLimiter_EndpointSpecific(t *testing.T) {
	l, _ := testLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		EndpointConfigs: []EndpointConfig{
			{Path: "/tasks/", Method: "POST", Limit: 2, Window: time.Hour},
		},
	})
	defer l.Stop()

	// Different tasks share the prefix budget.
	allowed, _ := l.Allow("c", "/tasks/a/steps/1", "POST")
	assert.True(t, allowed)
	allowed, _ = l.Allow("c", "/tasks/b/steps/1", "POST")
	assert.True(t, allowed)
	allowed, _ = l.Allow("c", "/tasks/c/confirm", "POST")
	assert.False(t, allowed)

	allowed, _ = l.Allow("c", "/tasks/a", "GET")
	assert.True(t, allowed, "reads use the default limit")

	allowed, info := l.Allow("c", "/health", "GET")
	assert.True(t, allowed)
	assert.Zero(t, info.Limit)
}

func TestLimiter_Concurrent(t *testing.T) {
	l, _ := testLimiter(&Config{Enabled: true, DefaultLimit: 50, DefaultWindow: time.Hour})
	defer l.Stop()

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _ := l.Allow("c", "/x", "GET"); allowed {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(50), ok.Load())
}

func TestLimiter_Cleanup(t *testing.T) {
	l, c := testLimiter(&Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute})
	defer l.Stop()

	l.Allow("a", "/x", "GET")
	c.advance(30 * time.Minute)
	l.Allow("b", "/x", "GET")
	require.Equal(t, 2, l.Len())

	c.advance(45 * time.Minute)
	l.cleanupBuckets()
	assert.Equal(t, 1, l.Len(), "only the idle bucket is dropped")
}

func TestLimiter_StopTwice(t *testing.T) {
	l := NewLimiter(nil)
	l.Stop()
	assert.NotPanics(t, l.Stop)
}

func TestMatchEndpoint(t *testing.T) {
	configs := []EndpointConfig{
		{Path: "/tasks", Method: "POST", Limit: 1},
		{Path: "/tasks/", Method: "POST", Limit: 2},
		{Path: "/tasks/special/", Method: "POST", Limit: 3},
	}
	tests := []struct {
		path, method string
		want         int
	}{
		{"/tasks", "POST", 1},
		{"/tasks/1/steps/2", "POST", 2},
		{"/tasks/special/x", "POST", 3},
		{"/tasks/1", "GET", -1},
		{"/health", "GET", 0},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.want < 0 {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Limit)
		})
	}
}

func TestLoadConfigFrom(t *testing.T) {
	env := map[string]string{
		"RATE_LIMIT_DEFAULT_LIMIT":  "42",
		"RATE_LIMIT_WHITELIST":      "127.0.0.1, 10.0.0.1",
		"RATE_LIMIT_DEFAULT_WINDOW": "bogus",
	}
	cfg := LoadConfigFrom(func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 42, cfg.DefaultLimit)
	assert.Equal(t, time.Minute, cfg.DefaultWindow, "invalid values keep defaults")
	assert.True(t, cfg.Whitelist["10.0.0.1"])
	assert.NotEmpty(t, cfg.EndpointConfigs)

	off := LoadConfigFrom(func(k string) (string, bool) { return "false", k == "RATE_LIMIT_ENABLED" })
	assert.False(t, off.Enabled)
}
