package webhook

import (
	"errors"
	"fmt"
	"strings"
)

// Signature failures are generic: the message must not reveal which header
// matched or which byte of the digest differed.
var (
	ErrMissingSignature = errors.New("webhook: missing signature header")
	ErrInvalidSignature = errors.New("webhook: invalid signature")
)

// PayloadError reports a payload that failed parsing or schema validation
// after its signature checked out. It is distinct from a signature failure:
// the sender is authentic but the body is unusable.
type PayloadError struct {
	Err        error
	Violations []string
}

func (e *PayloadError) Error() string {
	if len(e.Violations) > 0 {
		return fmt.Sprintf("webhook: payload failed validation: %s", strings.Join(e.Violations, "; "))
	}
	return fmt.Sprintf("webhook: malformed payload: %v", e.Err)
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}
