package errors

import "maps"

// ErrorCategory represents the broad category of an error for classification and routing.
type ErrorCategory string

const (
	// CategoryConfiguration covers malformed declared inputs: directive
	// processor specs missing fields, parameters without a resolvable value,
	// colliding output paths.
	CategoryConfiguration ErrorCategory = "configuration"

	// CategoryPersistence covers load/save failures of the build-state cache.
	// Always non-fatal: load failure cold-starts, save failure warns.
	CategoryPersistence ErrorCategory = "persistence"

	// CategoryProcessing covers a single entry's template processor failure.
	CategoryProcessing ErrorCategory = "processing"

	// CategoryInternal covers unexpected runtime failures.
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityError   ErrorSeverity = "error"   // Fails the current operation
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// ErrorContext provides structured context for errors.
type ErrorContext map[string]any

// Set adds or updates a context value.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// Get retrieves a context value.
func (c ErrorContext) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	value, exists := c[key]
	return value, exists
}

// Merge combines two contexts, with other taking precedence.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	if c == nil {
		return other
	}
	if other == nil {
		return c
	}
	result := make(ErrorContext)
	maps.Copy(result, c)
	maps.Copy(result, other)
	return result
}
