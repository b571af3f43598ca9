package records

import (
	"errors"
	"fmt"

	"github.com/SalithaMarasinghe/Pin-Potha/internal/docstore"
)

// ValidationError reports client input that cannot become a valid record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an id that does not resolve for the calling user.
// Records owned by someone else read as missing, not as forbidden.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// TransportError wraps a store or backend failure behind a named operation.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// storeErr maps a raw store failure onto the record error taxonomy.
func storeErr(op, kind, id string, err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return &NotFoundError{Kind: kind, ID: id}
	}
	return &TransportError{Op: op, Err: err}
}
