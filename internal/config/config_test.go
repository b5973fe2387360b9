package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/clinic")
	t.Setenv("OPENAI_API_KEY", "sk-test")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.PreferredChannel != "sms" {
		t.Errorf("PreferredChannel = %q, want sms", cfg.PreferredChannel)
	}
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 200 {
		t.Errorf("chunking = %d/%d, want 1000/200", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.LLMTimeout != 30*time.Second {
		t.Errorf("LLMTimeout = %s, want 30s", cfg.LLMTimeout)
	}
	if cfg.AppointmentStatus != "pending" {
		t.Errorf("AppointmentStatus = %q, want pending", cfg.AppointmentStatus)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidateMissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("OPENAI_API_KEY", "")

	err := Load().Validate()
	if err == nil {
		t.Fatal("expected error for missing required settings")
	}
}

func TestValidateRejectsUnknownChannel(t *testing.T) {
	setRequired(t)
	t.Setenv("PREFERRED_CHANNEL", "carrier-pigeon")

	if err := Load().Validate(); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}

func TestValidateRejectsBadStatus(t *testing.T) {
	setRequired(t)
	t.Setenv("APPOINTMENT_STATUS", "confirmed")

	if err := Load().Validate(); err == nil {
		t.Fatal("expected error for unsupported appointment status")
	}
}

func TestValidateRejectsOverlapLargerThanChunk(t *testing.T) {
	setRequired(t)
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "100")

	if err := Load().Validate(); err == nil {
		t.Fatal("expected error for overlap >= chunk size")
	}
}

func TestEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PREFERRED_CHANNEL", "EMAIL")
	t.Setenv("DB_CONNECT_BASE_DELAY", "250ms")
	t.Setenv("USE_MEMORY_HISTORY", "true")

	cfg := Load()

	if cfg.PreferredChannel != "email" {
		t.Errorf("PreferredChannel = %q, want email", cfg.PreferredChannel)
	}
	if cfg.DBConnectBaseDelay != 250*time.Millisecond {
		t.Errorf("DBConnectBaseDelay = %s, want 250ms", cfg.DBConnectBaseDelay)
	}
	if !cfg.UseMemoryHistory {
		t.Error("UseMemoryHistory = false, want true")
	}
}
