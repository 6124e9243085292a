package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4223" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.TTS.SampleRate != 24000 || cfg.TTS.Channels != 1 || cfg.TTS.BitsPerSample != 16 {
		t.Fatalf("unexpected speech format defaults: %+v", cfg.TTS)
	}
	if cfg.Narration.Translate != "auto" {
		t.Fatalf("expected auto translate policy, got %q", cfg.Narration.Translate)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BOOKS_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("BOOKS_BUS_USERNAME", "alice")
	t.Setenv("BOOKS_BUS_PASSWORD", "secret")
	t.Setenv("BOOKS_BUS_TLS_INSECURE", "true")
	t.Setenv("BOOKS_BUS_CONNECT_TIMEOUT_MS", "5000")
	t.Setenv("BOOKS_PROFILE_PATH", "./tmp.db")
	t.Setenv("BOOKS_PROFILE_MODE", "ephemeral")
	t.Setenv("BOOKS_LLM_MODE", "ollama")
	t.Setenv("BOOKS_LLM_TEMPERATURE", "0.2")
	t.Setenv("BOOKS_TTS_VOICE_FEMALE", "Aoede")
	t.Setenv("BOOKS_NARRATION_TRANSLATE", "always")
	t.Setenv("BOOKS_PLAYER_TICK_MS", "100")
	t.Setenv("BOOKS_CATALOG_LANGUAGE", "fr")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if !cfg.Bus.TLSInsecure {
		t.Fatal("expected tls insecure override true")
	}
	if cfg.Bus.ConnectTimeout != 5000 {
		t.Fatalf("expected timeout 5000, got %d", cfg.Bus.ConnectTimeout)
	}
	if cfg.Profile.Path != "./tmp.db" || cfg.Profile.Mode != "ephemeral" {
		t.Fatalf("expected profile override, got %+v", cfg.Profile)
	}
	if cfg.LLM.Mode != "ollama" || cfg.LLM.Temperature != 0.2 {
		t.Fatalf("expected llm override, got %+v", cfg.LLM)
	}
	if cfg.TTS.VoiceFemale != "Aoede" {
		t.Fatalf("expected voice override")
	}
	if cfg.Narration.Translate != "always" {
		t.Fatalf("expected translate override")
	}
	if cfg.Player.TickMS != 100 {
		t.Fatalf("expected tick override")
	}
	if cfg.Catalog.Language != "fr" {
		t.Fatalf("expected catalog language override, got %q", cfg.Catalog.Language)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.yaml")
	data := []byte("runtime_name: test-books\nhttp:\n  port: 9999\ntts:\n  mode: exec\n  command: ./speak --raw\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RuntimeName != "test-books" || cfg.HTTP.Port != 9999 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.TTS.Command != "./speak --raw" || cfg.TTS.SampleRate != 24000 {
		t.Fatalf("expected file merge over defaults, got %+v", cfg.TTS)
	}
}

func TestValidateRejectsBadModes(t *testing.T) {
	t.Setenv("BOOKS_TTS_MODE", "exec")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error when tts exec has no command")
	}
}

func TestValidateRejectsTranslatePolicy(t *testing.T) {
	t.Setenv("BOOKS_NARRATION_TRANSLATE", "sometimes")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown translate policy")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
