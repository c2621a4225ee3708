package scanner

import (
	"github.com/bft-labs/barscan/pkg/capture"
	"github.com/bft-labs/barscan/pkg/decode"
	"github.com/bft-labs/barscan/pkg/engine"
	"github.com/bft-labs/barscan/pkg/i18n"
	"github.com/bft-labs/barscan/pkg/lifecycle"
	"github.com/bft-labs/barscan/pkg/log"
)

// Version information for the scanner module.
const (
	// Version is the current version of the scanner module.
	Version = "1.0.0"

	// MinCompatibleVersion is the minimum version that is compatible with this version.
	MinCompatibleVersion = "1.0.0"
)

// ModuleVersions returns the version of every module the scanner is built from.
func ModuleVersions() map[string]string {
	return map[string]string{
		"scanner":   Version,
		"engine":    engine.Version,
		"lifecycle": lifecycle.Version,
		"capture":   capture.Version,
		"decode":    decode.Version,
		"i18n":      i18n.Version,
		"log":       log.Version,
	}
}
