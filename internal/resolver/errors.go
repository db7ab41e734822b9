package resolver

// personaNotFoundError signals an unknown persona selector (404 mapping).
type personaNotFoundError struct{ id string }

func (e personaNotFoundError) Error() string { return "persona not found: " + e.id }

func ErrPersonaNotFound(id string) error { return personaNotFoundError{id: id} }

// IsPersonaNotFound reports whether err indicates an unknown persona id.
func IsPersonaNotFound(err error) bool {
	_, ok := err.(personaNotFoundError)
	return ok
}

// modelUnavailableError signals the requested model could not be loaded for
// this request. A request-level failure, not a process-level one.
type modelUnavailableError struct{ name string }

func (e modelUnavailableError) Error() string { return "model '" + e.name + "' not available" }

func ErrModelUnavailable(name string) error { return modelUnavailableError{name: name} }

// IsModelUnavailable reports whether err indicates a failed resolution load.
func IsModelUnavailable(err error) bool {
	_, ok := err.(modelUnavailableError)
	return ok
}
