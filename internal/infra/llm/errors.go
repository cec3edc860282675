package llm

import "errors"

var (
	// ErrUnsupportedProvider is returned for provider identifiers that are
	// not recognized or have no configuration section.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrInvalidConfiguration is returned when a provider section exists
	// but required fields are missing or malformed.
	ErrInvalidConfiguration = errors.New("invalid provider configuration")

	// ErrProviderUnavailable is returned when binding to a provider that is
	// disabled or otherwise not usable.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrNoDefaultConfigured is returned when the chat section omits the
	// default provider identifier.
	ErrNoDefaultConfigured = errors.New("no default provider configured")
)
