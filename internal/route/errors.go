package route

import "fmt"

// ClassificationError reports that the classifier itself failed (for example
// the oracle call errored). Unrecognized labels are not errors; they resolve
// to the fallback handler.
type ClassificationError struct {
	Request string
	Err     error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify request %q: %v", e.Request, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// HandlerError reports a failure raised by the selected handler.
type HandlerError struct {
	Label Label
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %q: %v", e.Label, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
