package nodeapi

import (
	"errors"
	"fmt"
)

var (
	ErrGeneric                      = errors.New("generic node error")
	ErrInvalidInvoice               = errors.New("invalid invoice")
	ErrInvoiceExpired               = errors.New("invoice expired")
	ErrInvoiceNoDescription         = errors.New("invoice has no description")
	ErrInvoicePreimageAlreadyExists = errors.New("preimage already exists")
	ErrPaymentFailed                = errors.New("payment failed")
	ErrPaymentTimeout               = errors.New("payment timeout")
	ErrPersistence                  = errors.New("persistence failure")
	ErrRouteTooExpensive            = errors.New("route too expensive")
	ErrRouteNotFound                = errors.New("route not found")
	ErrServiceConnectivity          = errors.New("service connectivity")
)

// NodeError attaches one of the error kinds above to an underlying cause so
// callers can branch with errors.Is while keeping the original message.
type NodeError struct {
	Kind error
	Err  error
}

// Error returns a string representation of the error.
func (e *NodeError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}

	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

// Is reports whether target is the kind of this error.
func (e *NodeError) Is(target error) bool {
	return e.Kind == target
}

// Unwrap returns the underlying cause.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// NewError wraps err with the given kind. A nil err yields nil.
func NewError(kind, err error) error {
	if err == nil {
		return nil
	}

	// Don't stack kinds, the innermost one is the most precise.
	var nodeErr *NodeError
	if errors.As(err, &nodeErr) {
		return err
	}

	return &NodeError{Kind: kind, Err: err}
}

// Connectivity wraps err as a ServiceConnectivity error.
func Connectivity(err error) error {
	return NewError(ErrServiceConnectivity, err)
}
