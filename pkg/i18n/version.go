package i18n

// Version information for the i18n module.
const (
	// Version is the current version of the i18n module.
	Version = "1.0.0"

	// MinCompatibleVersion is the minimum version that is compatible with this version.
	MinCompatibleVersion = "1.0.0"
)
