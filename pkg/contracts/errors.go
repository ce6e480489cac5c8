package contracts

import "errors"

// Error taxonomy shared across the control plane. Packages wrap these
// sentinels with fmt.Errorf("...: %w", ...) so the HTTP boundary can map
// variants to status codes with errors.Is.
var (
	// ErrNotFound marks an unknown workflow, run, approval or secret.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed client input (bad decision, unknown preset).
	ErrValidation = errors.New("validation failed")
	// ErrConfiguration marks a missing master key or an unsafe connector URL.
	ErrConfiguration = errors.New("configuration error")
	// ErrVault marks a secret decryption or authentication failure.
	ErrVault = errors.New("vault error")
	// ErrStore marks a persistence failure; transactions roll back on it.
	ErrStore = errors.New("store error")
	// ErrExternal marks a non-2xx reply from a connector, webhook or TTS endpoint.
	ErrExternal = errors.New("external call failed")
)
