package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Store.Backend != BackendMemory {
		t.Errorf("backend = %q", cfg.Store.Backend)
	}
	if cfg.Cache.Capacity != 256 {
		t.Errorf("cache capacity = %d", cfg.Cache.Capacity)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MARKETLAB_SERVER_ADDR", ":9999")
	t.Setenv("MARKETLAB_CACHE_CAPACITY", "32")
	t.Setenv("MARKETLAB_COSTS_DEFAULT_BUDGET_USD", "1.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Cache.Capacity != 32 {
		t.Errorf("cache capacity = %d", cfg.Cache.Capacity)
	}
	if cfg.Costs.DefaultBudgetUSD != 1.5 {
		t.Errorf("default budget = %v", cfg.Costs.DefaultBudgetUSD)
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	t.Setenv("MARKETLAB_STORE_BACKEND", "bigtable")
	if _, err := Load(); err == nil {
		t.Fatal("expected unknown backend error")
	}
}

func TestValidateDBBackendRequiresDSNs(t *testing.T) {
	t.Setenv("MARKETLAB_STORE_BACKEND", "db")
	t.Setenv("MARKETLAB_STORE_CLICKHOUSE_DSN", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected missing DSN error")
	}
}
