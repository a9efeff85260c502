package labels

import (
	"errors"
	"fmt"
	"time"
)

const (
	// MaxDescriptionLength is the longest description a bolt11 invoice can
	// carry, in bytes.
	MaxDescriptionLength = 639

	// Reserved is the prefix of the labels generated for invoices and
	// keysend payments.
	Reserved = "breez-"
)

// ErrDescriptionTooLong is returned when a description doesn't fit into an
// invoice.
var ErrDescriptionTooLong = errors.New("description exceeds maximum length")

// Generated returns the label of an invoice or keysend payment created at
// t. Node labels must be unique, so the label carries the unix millis.
func Generated(t time.Time) string {
	return fmt.Sprintf("%s%d", Reserved, t.UnixMilli())
}

// ValidateDescription checks that an invoice description is of appropriate
// length.
func ValidateDescription(description string) error {
	if len(description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}

	return nil
}
