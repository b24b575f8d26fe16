package checkout

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAlreadyInProgress rejects a checkout while another one for the same
	// session is validating or submitting.
	ErrAlreadyInProgress = errors.New("checkout: already in progress")
	// ErrEmptyCart is returned when there is nothing to check out.
	ErrEmptyCart = errors.New("checkout: cart is empty")
	// ErrMissingClient is returned when a client is required but none was selected.
	ErrMissingClient = errors.New("checkout: client required")
	// ErrClientNotFound is returned when the selected client does not exist.
	ErrClientNotFound = errors.New("checkout: client not found")
	// ErrStockChanged is wrapped by StockChangedError.
	ErrStockChanged = errors.New("checkout: stock changed")
	// ErrInvalidPaymentMethod rejects unknown payment methods.
	ErrInvalidPaymentMethod = errors.New("checkout: invalid payment method")
)

// LineChange describes one cart line clamped during revalidation.
type LineChange struct {
	LineID    string `json:"lineId"`
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Previous  int    `json:"previous"`
	Current   int    `json:"current"`
	Removed   bool   `json:"removed"`
}

// StockChangedError lists every line whose live stock fell below its quantity.
// The cart has already been clamped when this is returned.
type StockChangedError struct {
	Changes []LineChange
}

func (e *StockChangedError) Error() string {
	parts := make([]string, 0, len(e.Changes))
	for _, c := range e.Changes {
		parts = append(parts, fmt.Sprintf("%s %d->%d", c.LineID, c.Previous, c.Current))
	}
	return "checkout: stock changed: " + strings.Join(parts, ", ")
}

func (e *StockChangedError) Unwrap() error { return ErrStockChanged }
