package checkout

import "errors"

// Code identifies a user-facing checkout validation failure. Validation
// failures abort the transaction but are reported as structured errors, not
// as server faults; callers map them to 400 responses.
type Code string

const (
	CodeCartNotFound       Code = "CART_NOT_FOUND"
	CodeNoItemsSelected    Code = "NO_ITEMS_SELECTED"
	CodeInsufficientStock  Code = "INSUFFICIENT_STOCK"
	CodeMissingAddress     Code = "MISSING_ADDRESS"
	CodeProductUnavailable Code = "PRODUCT_UNAVAILABLE"
)

// ValidationError is a recoverable checkout failure the caller may fix and
// resubmit. ProductID is set for stock and availability failures.
type ValidationError struct {
	Code      Code
	Message   string
	ProductID int64
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AsValidation unwraps err into a ValidationError when it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
