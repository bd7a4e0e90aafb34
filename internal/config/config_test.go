package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.DispatchBuffer != 256 || cfg.FanoutConcurrency != 8 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ShutdownTimeout != 10*time.Second || cfg.RateLimit != "100-M" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if w := cfg.Window(); w.OpenHour != 8 || w.CloseHour != 20 {
		t.Fatalf("window = %+v", w)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "mongo")
	t.Setenv("MONGO_DATABASE", "elderlink_test")
	t.Setenv("OPEN_HOUR", "9")
	t.Setenv("CLOSE_HOUR", "17")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreBackend != BackendMongo || cfg.MongoDatabase != "elderlink_test" {
		t.Fatalf("unexpected store config: %+v", cfg)
	}
	if cfg.Window().OpenHour != 9 || cfg.Window().CloseHour != 17 || cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port: "8080", StoreBackend: BackendMemory,
			DispatchBuffer: 1, FanoutConcurrency: 1,
			OpenHour: 8, CloseHour: 20,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.StoreBackend = "sqlite" }},
		{"empty port", func(c *Config) { c.Port = "" }},
		{"zero buffer", func(c *Config) { c.DispatchBuffer = 0 }},
		{"negative concurrency", func(c *Config) { c.FanoutConcurrency = -1 }},
		{"inverted window", func(c *Config) { c.OpenHour, c.CloseHour = 20, 8 }},
	}

	base := valid()
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
