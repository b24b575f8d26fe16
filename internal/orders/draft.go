package orders

import (
	"time"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/catalog"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/pricing"
)

// PaymentMethod is how the customer settles the order at the till.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentCheque   PaymentMethod = "cheque"
	PaymentTransfer PaymentMethod = "transfer"
)

// ParsePaymentMethod defaults an empty value to cash.
func ParsePaymentMethod(v string) (PaymentMethod, bool) {
	switch PaymentMethod(v) {
	case "":
		return PaymentCash, true
	case PaymentCash, PaymentCard, PaymentCheque, PaymentTransfer:
		return PaymentMethod(v), true
	default:
		return "", false
	}
}

// Item is one immutable line of an order draft.
type Item struct {
	ProductID     string              `json:"productId"`
	ProductType   catalog.ProductType `json:"productType"`
	Name          string              `json:"name"`
	Quantity      int                 `json:"quantity"`
	UnitPrice     pricing.Money       `json:"unitPrice"`
	VariantValue  string              `json:"variantValue,omitempty"`
	CombinationID string              `json:"combinationId,omitempty"`
}

// Draft is the payload submitted to the order service. It is built once per
// checkout attempt and never mutated afterwards.
type Draft struct {
	Reference     string        `json:"reference"`
	SessionID     string        `json:"sessionId"`
	ClientID      string        `json:"clientId,omitempty"`
	Items         []Item        `json:"items"`
	Subtotal      pricing.Money `json:"subtotal"`
	Discount      pricing.Money `json:"discount"`
	Total         pricing.Money `json:"total"`
	Currency      string        `json:"currency"`
	Notes         string        `json:"notes,omitempty"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// Created is the order service's acknowledgement.
type Created struct {
	OrderID   string `json:"orderId"`
	Reference string `json:"reference"`
}
