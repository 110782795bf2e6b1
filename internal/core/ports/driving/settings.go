package driving

import "github.com/custodia-labs/coursemind/internal/core/domain"

// SettingsService reads and writes application settings.
type SettingsService interface {
	// Get returns the effective settings: file values over defaults,
	// environment over both.
	Get() domain.Settings

	// Set validates and persists one setting.
	Set(key, value string) error

	// Keys lists the recognised setting keys.
	Keys() []string

	// ConfigPath returns where settings are stored.
	ConfigPath() string
}
