package imagegen

import "errors"

// ErrNotConfigured is returned when no provider credential is set.
var ErrNotConfigured = errors.New("image generation is not configured")

// ProviderError carries the provider's own failure message.
type ProviderError struct {
	Provider string
	Model    string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	return e.Provider + " (" + e.Model + "): " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
