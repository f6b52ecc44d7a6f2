package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
client:
  backend_url: "http://localhost:8080"
  resume_path: "resume.txt"
providers:
  llm:
    name: groq
    api_key: "gsk-test"
    model: "llama-3.3-70b-versatile"
  stt:
    name: deepgram
    api_key: "dg-test"
    model: "nova-3"
  tts:
    name: elevenlabs
    api_key: "el-test"
    voice: "EXAVITQu4vr4xnSDxMaL"
  embeddings:
    name: openai
    api_key: "sk-test"
interview:
  total_turns: 5
  silence_timeout: 4s
  ceiling_timeout: 2m
  false_start_delay: 1500ms
  start_delay: 800ms
audio:
  sample_rate: 16000
storage:
  postgres_dsn: "postgres://localhost/interview"
  embedding_dimensions: 1536
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Providers.LLM.Model != "llama-3.3-70b-versatile" {
		t.Errorf("LLM model = %q", cfg.Providers.LLM.Model)
	}
	if cfg.Providers.TTS.Voice != "EXAVITQu4vr4xnSDxMaL" {
		t.Errorf("TTS voice = %q", cfg.Providers.TTS.Voice)
	}
	if cfg.Interview.SilenceTimeout.Std() != 4*time.Second {
		t.Errorf("SilenceTimeout = %v", cfg.Interview.SilenceTimeout.Std())
	}
	if cfg.Interview.FalseStartDelay.Std() != 1500*time.Millisecond {
		t.Errorf("FalseStartDelay = %v", cfg.Interview.FalseStartDelay.Std())
	}
	if cfg.Storage.EmbeddingDimensions != 1536 {
		t.Errorf("EmbeddingDimensions = %d", cfg.Storage.EmbeddingDimensions)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("server:\n  listne_addr: \":8080\"\n"))
	if err == nil {
		t.Error("expected error for a misspelled field")
	}
}

func TestLoadFromReader_BadDuration(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("interview:\n  silence_timeout: four seconds\n"))
	if err == nil || !strings.Contains(err.Error(), "duration") {
		t.Errorf("expected duration parse error, got %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := &Config{}
	cfg.Server.LogLevel = "chatty"
	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "log_level") {
		t.Errorf("expected log_level error, got %v", err)
	}
}

func TestValidate_NegativeValues(t *testing.T) {
	cfg := &Config{}
	cfg.Interview.TotalTurns = -1
	cfg.Interview.SilenceTimeout = Duration(-time.Second)
	cfg.Audio.SampleRate = -8000

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"total_turns", "silence_timeout", "sample_rate"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestValidate_CeilingShorterThanSilence(t *testing.T) {
	cfg := &Config{}
	cfg.Interview.SilenceTimeout = Duration(10 * time.Second)
	cfg.Interview.CeilingTimeout = Duration(5 * time.Second)

	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "ceiling_timeout") {
		t.Errorf("expected ceiling_timeout error, got %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Client.BackendURL != "http://localhost:8080" {
		t.Errorf("BackendURL = %q", cfg.Client.BackendURL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDuration_Marshal(t *testing.T) {
	v, err := Duration(90 * time.Second).MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML: %v", err)
	}
	if v != "1m30s" {
		t.Errorf("MarshalYAML = %v, want 1m30s", v)
	}
}
