// Package config provides application-wide configuration for chatd.
// Configuration is bound from a YAML file; secrets and local endpoints can
// be overridden via environment variables so the binary runs without
// committing credentials to disk.
package config

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// Known provider identifiers. These are the configuration keys and the only
// values accepted by the factory and the coordinator.
const (
	ProviderAzureOpenAI      = "AzureOpenAI"
	ProviderOpenAI           = "OpenAI"
	ProviderHuggingFace      = "HuggingFace"
	ProviderOllama           = "Ollama"
	ProviderLMStudio         = "LMStudio"
	ProviderAzureAIInference = "AzureAIInference"
)

// ProviderIDs lists the known provider identifiers in stable display order.
var ProviderIDs = []string{
	ProviderAzureOpenAI,
	ProviderOpenAI,
	ProviderHuggingFace,
	ProviderOllama,
	ProviderLMStudio,
	ProviderAzureAIInference,
}

const (
	envAzureOpenAIKey      = "AZURE_OPENAI_API_KEY"
	envOpenAIKey           = "OPENAI_API_KEY"
	envHuggingFaceKey      = "HF_API_KEY"
	envAzureAIInferenceKey = "AZURE_AI_INFERENCE_API_KEY"
	envOllamaBaseURL       = "OLLAMA_BASE_URL"
	envLMStudioBaseURL     = "LMSTUDIO_BASE_URL"
	envDefaultProvider     = "CHATD_DEFAULT_PROVIDER"
)

// Generation holds optional per-provider generation overrides. When a field
// is absent the chat section default applies.
type Generation struct {
	Temperature  *float32 `yaml:"temperature"`
	MaxTokens    *int     `yaml:"max_tokens"`
	SystemPrompt string   `yaml:"system_prompt"`
}

// AzureOpenAIConfig configures the Azure OpenAI provider (deployment-based).
type AzureOpenAIConfig struct {
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"api_key"`
	DeploymentName string `yaml:"deployment_name"`
	Enabled        *bool  `yaml:"enabled"`
	Generation     `yaml:",inline"`
}

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	ModelID        string `yaml:"model_id"`
	OrganizationID string `yaml:"organization_id"`
	Enabled        *bool  `yaml:"enabled"`
	Generation     `yaml:",inline"`
}

// HuggingFaceConfig configures the HuggingFace router provider.
type HuggingFaceConfig struct {
	APIKey     string `yaml:"api_key"`
	ModelID    string `yaml:"model_id"`
	Endpoint   string `yaml:"endpoint"`
	Enabled    *bool  `yaml:"enabled"`
	Generation `yaml:",inline"`
}

// OllamaConfig configures the local Ollama provider.
type OllamaConfig struct {
	Endpoint   string `yaml:"endpoint"`
	ModelID    string `yaml:"model_id"`
	Enabled    *bool  `yaml:"enabled"`
	Generation `yaml:",inline"`
}

// LMStudioConfig configures the local LM Studio provider
// (OpenAI-compatible local server).
type LMStudioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	ModelID    string `yaml:"model_id"`
	Enabled    *bool  `yaml:"enabled"`
	Generation `yaml:",inline"`
}

// AzureAIInferenceConfig configures the Azure AI Inference provider.
type AzureAIInferenceConfig struct {
	APIKey     string `yaml:"api_key"`
	ModelID    string `yaml:"model_id"`
	Endpoint   string `yaml:"endpoint"`
	Enabled    *bool  `yaml:"enabled"`
	Generation `yaml:",inline"`
}

// ChatConfig holds conversation-level settings and generation defaults.
type ChatConfig struct {
	DefaultProvider      string  `yaml:"default_provider"`
	MaxHistoryMessages   int     `yaml:"max_history_messages"`
	DefaultSystemMessage string  `yaml:"default_system_message"`
	DefaultTemperature   float32 `yaml:"default_temperature"`
	DefaultMaxTokens     int     `yaml:"default_max_tokens"`
}

// Config is the root configuration. Provider sections are pointers: a nil
// section means the provider is simply not configured (not an error).
type Config struct {
	AzureOpenAI      *AzureOpenAIConfig      `yaml:"azure_openai"`
	OpenAI           *OpenAIConfig           `yaml:"openai"`
	HuggingFace      *HuggingFaceConfig      `yaml:"hugging_face"`
	Ollama           *OllamaConfig           `yaml:"ollama"`
	LMStudio         *LMStudioConfig         `yaml:"lm_studio"`
	AzureAIInference *AzureAIInferenceConfig `yaml:"azure_ai_inference"`
	Chat             ChatConfig              `yaml:"chat"`
}

// Descriptor describes one configured provider for listing and availability
// checks. Immutable snapshot; built on demand from the active Config.
type Descriptor struct {
	ID           string
	DisplayName  string
	Online       bool // true for cloud providers, false for local runtimes
	DefaultModel string
	Enabled      bool
	Valid        bool
}

// ExecutionSettings are the resolved generation parameters for one provider:
// provider-level overrides on top of the chat section defaults.
type ExecutionSettings struct {
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
}

// Defaults applied when the chat section omits values.
const (
	defaultMaxHistoryMessages = 20
	defaultSystemMessage      = "You are a helpful assistant."
	defaultTemperature        = float32(0.7)
	defaultMaxTokens          = 1024
)

// Load reads configuration from the YAML file at path (skipped when path is
// empty), applies environment overrides, then fills chat-section defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnv overrides secrets and local endpoints from environment variables.
// Overrides only touch sections that are already present; an env var alone
// does not bring a provider into existence.
func (c *Config) applyEnv() {
	if c.AzureOpenAI != nil {
		c.AzureOpenAI.APIKey = envOr(envAzureOpenAIKey, c.AzureOpenAI.APIKey)
	}
	if c.OpenAI != nil {
		c.OpenAI.APIKey = envOr(envOpenAIKey, c.OpenAI.APIKey)
	}
	if c.HuggingFace != nil {
		c.HuggingFace.APIKey = envOr(envHuggingFaceKey, c.HuggingFace.APIKey)
	}
	if c.AzureAIInference != nil {
		c.AzureAIInference.APIKey = envOr(envAzureAIInferenceKey, c.AzureAIInference.APIKey)
	}
	if c.Ollama != nil {
		c.Ollama.Endpoint = envOr(envOllamaBaseURL, c.Ollama.Endpoint)
	}
	if c.LMStudio != nil {
		c.LMStudio.Endpoint = envOr(envLMStudioBaseURL, c.LMStudio.Endpoint)
	}
	c.Chat.DefaultProvider = envOr(envDefaultProvider, c.Chat.DefaultProvider)
}

// applyDefaults fills chat-section defaults for omitted values.
func (c *Config) applyDefaults() {
	if c.Chat.MaxHistoryMessages <= 0 {
		c.Chat.MaxHistoryMessages = defaultMaxHistoryMessages
	}
	if c.Chat.DefaultSystemMessage == "" {
		c.Chat.DefaultSystemMessage = defaultSystemMessage
	}
	if c.Chat.DefaultTemperature == 0 {
		c.Chat.DefaultTemperature = defaultTemperature
	}
	if c.Chat.DefaultMaxTokens <= 0 {
		c.Chat.DefaultMaxTokens = defaultMaxTokens
	}
}

// Descriptor returns the descriptor for id. The second return is false for
// unknown identifiers and for known providers with no configuration section.
func (c *Config) Descriptor(id string) (Descriptor, bool) {
	switch id {
	case ProviderAzureOpenAI:
		if c.AzureOpenAI == nil {
			return Descriptor{}, false
		}
		s := c.AzureOpenAI
		return Descriptor{
			ID:           id,
			DisplayName:  "Azure OpenAI",
			Online:       true,
			DefaultModel: s.DeploymentName,
			Enabled:      enabled(s.Enabled),
			Valid:        validURL(s.Endpoint) && s.APIKey != "" && s.DeploymentName != "",
		}, true
	case ProviderOpenAI:
		if c.OpenAI == nil {
			return Descriptor{}, false
		}
		s := c.OpenAI
		return Descriptor{
			ID:           id,
			DisplayName:  "OpenAI",
			Online:       true,
			DefaultModel: s.ModelID,
			Enabled:      enabled(s.Enabled),
			Valid:        s.APIKey != "" && s.ModelID != "",
		}, true
	case ProviderHuggingFace:
		if c.HuggingFace == nil {
			return Descriptor{}, false
		}
		s := c.HuggingFace
		return Descriptor{
			ID:           id,
			DisplayName:  "HuggingFace",
			Online:       true,
			DefaultModel: s.ModelID,
			Enabled:      enabled(s.Enabled),
			Valid:        s.APIKey != "" && s.ModelID != "" && validURL(s.Endpoint),
		}, true
	case ProviderOllama:
		if c.Ollama == nil {
			return Descriptor{}, false
		}
		s := c.Ollama
		return Descriptor{
			ID:           id,
			DisplayName:  "Ollama",
			Online:       false,
			DefaultModel: s.ModelID,
			Enabled:      enabled(s.Enabled),
			Valid:        validURL(s.Endpoint) && s.ModelID != "",
		}, true
	case ProviderLMStudio:
		if c.LMStudio == nil {
			return Descriptor{}, false
		}
		s := c.LMStudio
		return Descriptor{
			ID:           id,
			DisplayName:  "LM Studio",
			Online:       false,
			DefaultModel: s.ModelID,
			Enabled:      enabled(s.Enabled),
			Valid:        validURL(s.Endpoint) && s.ModelID != "",
		}, true
	case ProviderAzureAIInference:
		if c.AzureAIInference == nil {
			return Descriptor{}, false
		}
		s := c.AzureAIInference
		return Descriptor{
			ID:           id,
			DisplayName:  "Azure AI Inference",
			Online:       true,
			DefaultModel: s.ModelID,
			Enabled:      enabled(s.Enabled),
			Valid:        s.APIKey != "" && s.ModelID != "" && validURL(s.Endpoint),
		}, true
	default:
		return Descriptor{}, false
	}
}

// Descriptors returns descriptors for every configured provider, in the
// stable order of ProviderIDs.
func (c *Config) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(ProviderIDs))
	for _, id := range ProviderIDs {
		if d, ok := c.Descriptor(id); ok {
			out = append(out, d)
		}
	}
	return out
}

// IsConfigured reports whether id names a provider that is present, enabled
// and valid. Pure check, no network calls.
func (c *Config) IsConfigured(id string) bool {
	d, ok := c.Descriptor(id)
	return ok && d.Enabled && d.Valid
}

// ExecutionSettings resolves generation parameters for id: provider-level
// overrides on top of chat defaults. The second return is false for unknown
// or unconfigured providers.
func (c *Config) ExecutionSettings(id string) (ExecutionSettings, bool) {
	gen, ok := c.generation(id)
	if !ok {
		return ExecutionSettings{}, false
	}

	es := ExecutionSettings{
		Temperature:  c.Chat.DefaultTemperature,
		MaxTokens:    c.Chat.DefaultMaxTokens,
		SystemPrompt: c.Chat.DefaultSystemMessage,
	}
	if gen.Temperature != nil {
		es.Temperature = *gen.Temperature
	}
	if gen.MaxTokens != nil {
		es.MaxTokens = *gen.MaxTokens
	}
	if gen.SystemPrompt != "" {
		es.SystemPrompt = gen.SystemPrompt
	}
	return es, true
}

// generation returns the override block for id, if the section exists.
func (c *Config) generation(id string) (Generation, bool) {
	switch id {
	case ProviderAzureOpenAI:
		if c.AzureOpenAI != nil {
			return c.AzureOpenAI.Generation, true
		}
	case ProviderOpenAI:
		if c.OpenAI != nil {
			return c.OpenAI.Generation, true
		}
	case ProviderHuggingFace:
		if c.HuggingFace != nil {
			return c.HuggingFace.Generation, true
		}
	case ProviderOllama:
		if c.Ollama != nil {
			return c.Ollama.Generation, true
		}
	case ProviderLMStudio:
		if c.LMStudio != nil {
			return c.LMStudio.Generation, true
		}
	case ProviderAzureAIInference:
		if c.AzureAIInference != nil {
			return c.AzureAIInference.Generation, true
		}
	}
	return Generation{}, false
}

// DefaultProviderID returns the configured fallback provider identifier.
// The second return is false when the chat section omits it.
func (c *Config) DefaultProviderID() (string, bool) {
	if c.Chat.DefaultProvider == "" {
		return "", false
	}
	return c.Chat.DefaultProvider, true
}

// enabled resolves the optional enabled flag; an absent flag means enabled.
func enabled(b *bool) bool {
	return b == nil || *b
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// validURL reports whether s parses as an absolute http(s) URL.
func validURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
