package keyrank

import (
	"errors"

	"github.com/brunobiangulo/keyrank/lang"
)

var (
	// ErrUnsupportedLanguage is returned when no language capability exists
	// for the configured language code.
	ErrUnsupportedLanguage = lang.ErrUnsupportedLanguage

	// ErrResourceLoad is returned when a language model or sense dictionary
	// cannot be loaded. Failed loads are remembered and not retried.
	ErrResourceLoad = errors.New("keyrank: resource load failed")

	// ErrRunTimeout is returned when a run exceeds its time budget. The
	// engine stays usable.
	ErrRunTimeout = errors.New("keyrank: run timed out")

	// ErrEngineClosed is returned when submitting work to a closed engine.
	ErrEngineClosed = errors.New("keyrank: engine is closed")

	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("keyrank: unsupported document format")

	// ErrParsingFailed is returned when document parsing fails.
	ErrParsingFailed = errors.New("keyrank: parsing failed")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("keyrank: invalid configuration")

	// ErrDocumentNotFound is returned when a path has never been extracted.
	ErrDocumentNotFound = errors.New("keyrank: document not found")

	// ErrStoreRequired is returned by operations that need the result store
	// when the engine was configured without one.
	ErrStoreRequired = errors.New("keyrank: result store required")
)
