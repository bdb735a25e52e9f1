package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := &Config{
		DefaultSession: "work",
		Chat:           Chat{RevealDelay: Duration{250 * time.Millisecond}},
		Sessions:       map[string]Session{"work": {BotCode: "ada", Token: "tok"}},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if loaded.Chat.RevealDelay.Duration != 250*time.Millisecond {
		t.Errorf("RevealDelay = %v, want 250ms", loaded.Chat.RevealDelay)
	}
	s, err := loaded.Session("work")
	if err != nil {
		t.Fatal(err)
	}
	if s.BotCode != "ada" || s.Token != "tok" {
		t.Errorf("session = %+v", s)
	}
}

func TestLoadDurationsFromText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[platform]
request_timeout = "3s"
[chat]
reveal_delay = "10ms"
page_size = 5
`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadOrDefault(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Platform.RequestTimeout.Duration != 3*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.Platform.RequestTimeout)
	}
	if cfg.Chat.RevealDelay.Duration != 10*time.Millisecond {
		t.Errorf("RevealDelay = %v", cfg.Chat.RevealDelay)
	}
	if cfg.Chat.PageSize != 5 {
		t.Errorf("PageSize = %d, want 5", cfg.Chat.PageSize)
	}
	if cfg.Chat.WelcomeText != DefaultWelcomeText {
		t.Errorf("WelcomeText = %q", cfg.Chat.WelcomeText)
	}
}

func TestBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[chat]\nreveal_delay = \"soon\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for bad duration")
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Chat.PageSize != DefaultPageSize || cfg.Platform.LiveTransport != DefaultLiveTransport {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestSessionMissingBot(t *testing.T) {
	cfg := &Config{Sessions: map[string]Session{"main": {}}}
	if _, err := cfg.Session("main"); err == nil {
		t.Error("expected error for empty bot_code")
	}
	if _, err := cfg.Session("other"); err == nil {
		t.Error("expected error for unknown session")
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{DefaultSession: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
