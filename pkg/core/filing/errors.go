package filing

import "fmt"

// ExternalModelError reports a hosted-model call that failed or answered
// with something that does not parse. It is fatal to the operation that
// issued the call; runs record it per model or per document and continue
// with their remaining work.
type ExternalModelError struct {
	Op  string // the step talking to the model, e.g. "parse ToC response"
	Err error
}

func (e *ExternalModelError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExternalModelError) Unwrap() error { return e.Err }
