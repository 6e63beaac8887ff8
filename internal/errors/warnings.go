package errors

import (
	goerrors "errors"
	"fmt"
)

// Warning is a non-fatal degradation attached to an extraction result.
// The caller always receives whatever was extractable plus the list of
// warnings explaining what was lost along the way.
type Warning struct {
	Code    ErrorCode `json:"code"`
	Source  string    `json:"source,omitempty"`
	Message string    `json:"message"`
}

func (w Warning) String() string {
	if w.Source != "" {
		return fmt.Sprintf("%s [%s]: %s", w.Code, w.Source, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.Code, w.Message)
}

// WarningFromError downgrades a recoverable ProcessingError to a Warning.
// Unclassified errors map to STRATEGY_DEGRADED with the given source.
func WarningFromError(source string, err error) Warning {
	var pe *ProcessingError
	if As(err, &pe) {
		return Warning{Code: pe.Code, Source: source, Message: pe.Message}
	}
	return Warning{Code: ErrorStrategyDegraded, Source: source, Message: err.Error()}
}

// HasFatal reports whether any warning in the list carries a fatal code.
// Used by tests and callers that need to distinguish degraded results from
// broken ones.
func HasFatal(warnings []Warning) bool {
	for _, w := range warnings {
		switch w.Code {
		case ErrorDecodeFailed, ErrorValidationFailed, ErrorStorageFailed, ErrorDatabaseFailed:
			return true
		}
	}
	return false
}

// As wraps errors.As so callers of this package do not need both imports.
func As(err error, target interface{}) bool {
	return goerrors.As(err, target)
}
