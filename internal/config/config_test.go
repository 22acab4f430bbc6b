package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	tests := []struct {
		name  string
		check func(*Config) bool
	}{
		{"default mode is worker", func(c *Config) bool { return c.Mode == "worker" }},
		{"default host is 0.0.0.0", func(c *Config) bool { return c.Host == "0.0.0.0" }},
		{"default port is 8080", func(c *Config) bool { return c.Port == 8080 }},
		{"default log level is info", func(c *Config) bool { return c.LogLevel == "info" }},
		{"default log format is json", func(c *Config) bool { return c.LogFormat == "json" }},
		{"default cluster namespace", func(c *Config) bool { return c.ClusterNamespace == "challenges" }},
		{"default cluster manager disabled", func(c *Config) bool { return !c.ClusterEnabled }},
		{"default cluster proxy disabled", func(c *Config) bool { return !c.ClusterProxyEnabled }},
		{"default submission rate limit is 10", func(c *Config) bool { return c.SubmissionRateLimit == 10 }},
		{"default submission rate window is 60s", func(c *Config) bool { return c.SubmissionRateWindow == 60*time.Second }},
		{"default reaper period is 10s", func(c *Config) bool { return c.ReaperPeriod == 10*time.Second }},
		{"listen addr format", func(c *Config) bool { return c.ListenAddr() == "0.0.0.0:8080" }},
		{"default seed admin username", func(c *Config) bool { return c.SeedAdminUsername == "admin" }},
		{"default seed admin email", func(c *Config) bool { return c.SeedAdminEmail == "admin@cdsctf.local" }},
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(cfg) {
				t.Errorf("config default check failed: %s", tt.name)
			}
		})
	}
}
