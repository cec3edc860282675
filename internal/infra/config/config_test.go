package config

import (
	"os"
	"path/filepath"
	"testing"
)

// writeConfig writes a temp YAML config file and returns its path.
func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chatd.yml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_OllamaOnly_ListsSingleOfflineProvider(t *testing.T) {
	path := writeConfig(t, `
ollama:
  endpoint: "http://localhost:11434"
  model_id: "llama2"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	ds := cfg.Descriptors()
	if len(ds) != 1 {
		t.Fatalf("expected exactly 1 descriptor, got %d", len(ds))
	}
	d := ds[0]
	if d.ID != ProviderOllama {
		t.Errorf("expected id %q, got %q", ProviderOllama, d.ID)
	}
	if d.Online {
		t.Error("expected Ollama to be offline (local runtime)")
	}
	if !d.Enabled || !d.Valid {
		t.Errorf("expected enabled+valid, got enabled=%v valid=%v", d.Enabled, d.Valid)
	}

	if cfg.IsConfigured(ProviderAzureOpenAI) {
		t.Error("expected AzureOpenAI to be unconfigured")
	}
}

func TestLoad_MissingFile_ReturnsError(t *testing.T) {
	t.Parallel()

	if _, err := Load("/does/not/exist.yml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_EmptyPath_UsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Chat.MaxHistoryMessages != defaultMaxHistoryMessages {
		t.Errorf("expected default max history %d, got %d", defaultMaxHistoryMessages, cfg.Chat.MaxHistoryMessages)
	}
	if cfg.Chat.DefaultSystemMessage == "" {
		t.Error("expected non-empty default system message")
	}
	if len(cfg.Descriptors()) != 0 {
		t.Error("expected no providers without configuration")
	}
}

func TestDescriptor_UnknownID_ReturnsFalse(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	if _, ok := cfg.Descriptor("Anthropic"); ok {
		t.Error("expected unknown provider id to return ok=false")
	}
}

func TestDescriptor_InvalidSection_IsPresentButInvalid(t *testing.T) {
	path := writeConfig(t, `
openai:
  model_id: "gpt-4o-mini"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	d, ok := cfg.Descriptor(ProviderOpenAI)
	if !ok {
		t.Fatal("expected OpenAI descriptor to exist")
	}
	if d.Valid {
		t.Error("expected descriptor without api key to be invalid")
	}
	if cfg.IsConfigured(ProviderOpenAI) {
		t.Error("expected invalid provider to be unconfigured")
	}
}

func TestDescriptor_DisabledSection(t *testing.T) {
	path := writeConfig(t, `
ollama:
  endpoint: "http://localhost:11434"
  model_id: "llama2"
  enabled: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	d, _ := cfg.Descriptor(ProviderOllama)
	if d.Enabled {
		t.Error("expected enabled=false")
	}
	if !d.Valid {
		t.Error("disabled section should still be valid")
	}
	if cfg.IsConfigured(ProviderOllama) {
		t.Error("disabled provider must not count as configured")
	}
}

func TestExecutionSettings_DefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
ollama:
  endpoint: "http://localhost:11434"
  model_id: "llama2"
  temperature: 0.1
openai:
  api_key: "sk-test"
  model_id: "gpt-4o-mini"
chat:
  default_temperature: 0.5
  default_max_tokens: 256
  default_system_message: "Sos un asistente."
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	es, ok := cfg.ExecutionSettings(ProviderOllama)
	if !ok {
		t.Fatal("expected execution settings for Ollama")
	}
	if es.Temperature != 0.1 {
		t.Errorf("expected override temperature 0.1, got %v", es.Temperature)
	}
	if es.MaxTokens != 256 {
		t.Errorf("expected default max tokens 256, got %d", es.MaxTokens)
	}
	if es.SystemPrompt != "Sos un asistente." {
		t.Errorf("unexpected system prompt %q", es.SystemPrompt)
	}

	es, ok = cfg.ExecutionSettings(ProviderOpenAI)
	if !ok {
		t.Fatal("expected execution settings for OpenAI")
	}
	if es.Temperature != 0.5 {
		t.Errorf("expected default temperature 0.5, got %v", es.Temperature)
	}

	if _, ok := cfg.ExecutionSettings("Anthropic"); ok {
		t.Error("expected ok=false for unknown provider")
	}
	if _, ok := cfg.ExecutionSettings(ProviderLMStudio); ok {
		t.Error("expected ok=false for absent section")
	}
}

func TestDefaultProviderID(t *testing.T) {
	cfg := &Config{}
	if _, ok := cfg.DefaultProviderID(); ok {
		t.Error("expected ok=false when default provider omitted")
	}

	cfg.Chat.DefaultProvider = ProviderOllama
	id, ok := cfg.DefaultProviderID()
	if !ok || id != ProviderOllama {
		t.Errorf("expected %q, got %q ok=%v", ProviderOllama, id, ok)
	}
}

func TestApplyEnv_OverridesSecretsForPresentSections(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("OLLAMA_BASE_URL", "http://ollama.lan:11434")
	t.Setenv("CHATD_DEFAULT_PROVIDER", "OpenAI")

	path := writeConfig(t, `
openai:
  api_key: "sk-file"
  model_id: "gpt-4o-mini"
ollama:
  endpoint: "http://localhost:11434"
  model_id: "llama2"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.OpenAI.APIKey != "sk-env" {
		t.Errorf("expected env api key override, got %q", cfg.OpenAI.APIKey)
	}
	if cfg.Ollama.Endpoint != "http://ollama.lan:11434" {
		t.Errorf("expected env endpoint override, got %q", cfg.Ollama.Endpoint)
	}
	if id, _ := cfg.DefaultProviderID(); id != "OpenAI" {
		t.Errorf("expected env default provider, got %q", id)
	}
}

func TestValidURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want bool
	}{
		{"http://localhost:11434", true},
		{"https://api.openai.com", true},
		{"", false},
		{"not a url", false},
		{"ftp://x", false},
	}
	for _, c := range cases {
		if got := validURL(c.in); got != c.want {
			t.Errorf("validURL(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
