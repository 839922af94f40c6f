package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CLUSTER_DOMAIN", "cloud.example.com")
	t.Setenv("REGISTRY_USER", "admin")

	cfg := Load()
	if cfg.HTTPPort != "5002" {
		t.Errorf("HTTPPort = %q", cfg.HTTPPort)
	}
	if cfg.PublicURL != "http://cloud.example.com:5002" {
		t.Errorf("PublicURL = %q", cfg.PublicURL)
	}
	if cfg.ConsoleURL != "http://cloud.example.com:32293" {
		t.Errorf("ConsoleURL = %q", cfg.ConsoleURL)
	}
	if cfg.ResourceThreshold != 70 || cfg.ResourceCheckInterval != time.Minute || cfg.PriorityMin != 1 {
		t.Errorf("monitor defaults = %v %v %v", cfg.ResourceThreshold, cfg.ResourceCheckInterval, cfg.PriorityMin)
	}
	if cfg.SourceRegistry.URL != "sealos.hub:5000" || cfg.SourceRegistry.User != "admin" {
		t.Errorf("source registry should default to target: %+v", cfg.SourceRegistry)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("RESOURCE_THRESHOLD", "high")
	t.Setenv("RESOURCE_CHECK_INTERVAL", "-5s")
	t.Setenv("PRIORITY_MIN", "x")

	cfg := Load()
	if cfg.ResourceThreshold != 70 || cfg.ResourceCheckInterval != time.Minute || cfg.PriorityMin != 1 {
		t.Errorf("fallbacks = %v %v %v", cfg.ResourceThreshold, cfg.ResourceCheckInterval, cfg.PriorityMin)
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV(" a.local:5000, ,b.local ")
	if len(got) != 2 || got[0] != "a.local:5000" || got[1] != "b.local" {
		t.Errorf("splitCSV = %v", got)
	}
	if splitCSV("") != nil {
		t.Error("empty input should give nil")
	}
}
