package engine

// notReadyError signals generate was called with no loaded model (503).
type notReadyError struct{}

func (notReadyError) Error() string { return "no model loaded" }

// ErrNotReady constructs a notReadyError.
func ErrNotReady() error { return notReadyError{} }

// IsNotReady reports whether err indicates the engine holds no model.
func IsNotReady(err error) bool {
	_, ok := err.(notReadyError)
	return ok
}

// engineBusyError signals a generation is already in flight (429 mapping).
type engineBusyError struct{}

func (engineBusyError) Error() string { return "generation already in progress" }

func ErrEngineBusy() error { return engineBusyError{} }

// IsEngineBusy reports whether err indicates the single-flight slot is taken.
func IsEngineBusy(err error) bool {
	_, ok := err.(engineBusyError)
	return ok
}

// modelNotFoundError signals a name absent from the catalog.
type modelNotFoundError struct{ name string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.name }

func ErrModelNotFound(name string) error { return modelNotFoundError{name: name} }

// IsModelNotFound reports whether the error indicates a missing catalog entry.
func IsModelNotFound(err error) bool {
	_, ok := err.(modelNotFoundError)
	return ok
}

// backendUnavailableError signals a missing backend runtime (e.g. a binary
// built without the llama tag) so the HTTP layer can return 503 instead of 500.
type backendUnavailableError struct{ msg string }

func (e backendUnavailableError) Error() string { return e.msg }

func ErrBackendUnavailable(msg string) error { return backendUnavailableError{msg: msg} }

// IsBackendUnavailable reports whether err indicates a missing backend runtime.
func IsBackendUnavailable(err error) bool {
	_, ok := err.(backendUnavailableError)
	return ok
}
