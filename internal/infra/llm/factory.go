// Capability factory: turns configuration descriptors into cached, reusable
// provider handles. One live handle per provider identifier; get-or-create
// is a single critical section so concurrent coordinators never construct
// duplicate handles.
package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/matiasleandrokruk/chatd/internal/infra/config"
)

// ProviderStatus is a configuration descriptor augmented with availability.
type ProviderStatus struct {
	config.Descriptor
	Available bool
}

// Factory owns the handle cache and the disposal of every cached handle.
type Factory struct {
	mu      sync.Mutex
	cfg     *config.Config
	handles map[string]ChatProvider
}

// NewFactory creates a Factory over the loaded configuration.
func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		cfg:     cfg,
		handles: make(map[string]ChatProvider),
	}
}

// GetOrCreate returns the cached handle for id, constructing and caching one
// on first use. Fails with ErrUnsupportedProvider for unknown identifiers,
// ErrInvalidConfiguration when required fields are missing/malformed, and
// ErrProviderUnavailable when the section is explicitly disabled.
func (f *Factory) GetOrCreate(id string) (ChatProvider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.handles[id]; ok {
		return h, nil
	}

	d, ok := f.cfg.Descriptor(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, id)
	}
	if !d.Valid {
		return nil, fmt.Errorf("%w: %q", ErrInvalidConfiguration, id)
	}
	if !d.Enabled {
		return nil, fmt.Errorf("%w: %q is disabled", ErrProviderUnavailable, id)
	}

	h := f.build(id)
	f.handles[id] = h

	log.Info().Str("provider", id).Str("model", d.DefaultModel).Msg("provider handle constructed")
	return h, nil
}

// build constructs the vendor adapter for a validated descriptor.
func (f *Factory) build(id string) ChatProvider {
	switch id {
	case config.ProviderOllama:
		s := f.cfg.Ollama
		return NewOllamaProvider(s.Endpoint, s.ModelID)
	case config.ProviderOpenAI:
		s := f.cfg.OpenAI
		return NewOpenAIProvider(s.APIKey, s.ModelID, s.OrganizationID)
	case config.ProviderLMStudio:
		s := f.cfg.LMStudio
		return NewLMStudioProvider(s.Endpoint, s.ModelID)
	case config.ProviderHuggingFace:
		s := f.cfg.HuggingFace
		return NewHuggingFaceProvider(s.Endpoint, s.APIKey, s.ModelID)
	case config.ProviderAzureOpenAI:
		s := f.cfg.AzureOpenAI
		return NewAzureOpenAIProvider(s.Endpoint, s.APIKey, s.DeploymentName)
	case config.ProviderAzureAIInference:
		s := f.cfg.AzureAIInference
		return NewAzureAIInferenceProvider(s.Endpoint, s.APIKey, s.ModelID)
	default:
		// Descriptor lookup already rejected unknown ids.
		panic("llm: build called for unknown provider " + id)
	}
}

// healthProbeTimeout bounds the best-effort reachability probe in
// ListProviders so a hung backend cannot stall a listing request.
const healthProbeTimeout = 2 * time.Second

// ListProviders returns every configured provider with its availability:
// enabled AND valid AND — best effort, only for already-constructed
// handles — reachable. Handles are snapshotted under the lock; probes run
// outside it so a slow backend cannot stall GetOrCreate or Close.
func (f *Factory) ListProviders(ctx context.Context) []ProviderStatus {
	f.mu.Lock()
	handles := make(map[string]ChatProvider, len(f.handles))
	for id, h := range f.handles {
		handles[id] = h
	}
	f.mu.Unlock()

	out := make([]ProviderStatus, 0)
	for _, d := range f.cfg.Descriptors() {
		available := d.Enabled && d.Valid
		if h, ok := handles[d.ID]; available && ok {
			probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
			if err := h.HealthCheck(probeCtx); err != nil {
				log.Debug().Str("provider", d.ID).Err(err).Msg("health probe failed")
				available = false
			}
			cancel()
		}
		out = append(out, ProviderStatus{Descriptor: d, Available: available})
	}
	return out
}

// IsAvailable reports whether id names an enabled, valid provider.
// Pure configuration check, no network call.
func (f *Factory) IsAvailable(id string) bool {
	return f.cfg.IsConfigured(id)
}

// DefaultProviderID returns the configured fallback provider identifier.
func (f *Factory) DefaultProviderID() (string, error) {
	id, ok := f.cfg.DefaultProviderID()
	if !ok {
		return "", ErrNoDefaultConfigured
	}
	return id, nil
}

// Close disposes every cached handle. The factory is unusable afterwards.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for id, h := range f.handles {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
		delete(f.handles, id)
	}
	return errors.Join(errs...)
}
