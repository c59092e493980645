package fake

import "fmt"

// NotFoundError is returned when a URI was never allocated by the engine.
type NotFoundError struct {
	URI string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no object with URI %q", e.URI)
}

// CeasedExistenceError is returned when a URI was valid once but the
// object or one of its ancestors has been deleted since.
type CeasedExistenceError struct {
	URI string
}

func (e *CeasedExistenceError) Error() string {
	return fmt.Sprintf("object %q has ceased to exist", e.URI)
}

// ValidationError is returned when input properties fail validation.
type ValidationError struct {
	Kind     string
	Property string
	Message  string
}

func (e *ValidationError) Error() string {
	if e.Property != "" {
		return fmt.Sprintf("invalid %s: property %q: %s", e.Kind, e.Property, e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Kind, e.Message)
}

// ConflictError is returned when an explicit identifier collides with an
// existing sibling of the same kind.
type ConflictError struct {
	Kind string
	OID  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with id %q already exists under the same parent", e.Kind, e.OID)
}
