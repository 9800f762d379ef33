package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %s, want 8080", cfg.Port)
	}
	if cfg.GroupWindow != 5*time.Second {
		t.Errorf("GroupWindow = %s, want 5s", cfg.GroupWindow)
	}
	if cfg.ReconcileDelay != 6*time.Second {
		t.Errorf("ReconcileDelay = %s, want 6s", cfg.ReconcileDelay)
	}
	if cfg.SweepInterval != 5*time.Second {
		t.Errorf("SweepInterval = %s, want 5s", cfg.SweepInterval)
	}
	if cfg.UseMemoryQueue {
		t.Error("UseMemoryQueue should default to false")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("GROUP_WINDOW", "10s")
	t.Setenv("RECONCILE_DELAY", "250ms")
	t.Setenv("USE_MEMORY_QUEUE", "true")
	t.Setenv("WORKER_COUNT", "8")

	cfg := Load()

	if cfg.Port != "9999" {
		t.Errorf("Port = %s, want 9999", cfg.Port)
	}
	if cfg.GroupWindow != 10*time.Second {
		t.Errorf("GroupWindow = %s, want 10s", cfg.GroupWindow)
	}
	if cfg.ReconcileDelay != 250*time.Millisecond {
		t.Errorf("ReconcileDelay = %s, want 250ms", cfg.ReconcileDelay)
	}
	if !cfg.UseMemoryQueue {
		t.Error("UseMemoryQueue should be true")
	}
	if cfg.WorkerCount != 8 {
		t.Errorf("WorkerCount = %d, want 8", cfg.WorkerCount)
	}
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("GROUP_WINDOW", "soon")

	cfg := Load()
	if cfg.GroupWindow != 5*time.Second {
		t.Errorf("GroupWindow = %s, want default 5s", cfg.GroupWindow)
	}
}
