package receipt

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bdzhonsoniuk/backend-receipts/internal/common"
)

// PaymentKind enumerates the accepted payment methods.
type PaymentKind string

const (
	PaymentCash     PaymentKind = "cash"
	PaymentCashless PaymentKind = "cashless"
)

// ParsePaymentKind validates a raw payment kind value.
func ParsePaymentKind(value string) (PaymentKind, error) {
	switch PaymentKind(strings.ToLower(strings.TrimSpace(value))) {
	case PaymentCash:
		return PaymentCash, nil
	case PaymentCashless:
		return PaymentCashless, nil
	default:
		return "", common.NewValidationError("payment kind must be either cash or cashless")
	}
}

// LineItem is a single purchased product as supplied by the client.
type LineItem struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
}

// LineItemTotal extends LineItem with its computed line total.
type LineItemTotal struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
	Total    decimal.Decimal `json:"total"`
}

// Payment describes how a purchase was paid for.
type Payment struct {
	Kind   PaymentKind     `json:"kind"`
	Amount decimal.Decimal `json:"amount"`
}

// Receipt is the immutable record of a purchase. ID and PublicID are assigned
// by the repository when the receipt is persisted; Compute leaves them empty.
type Receipt struct {
	ID            string          `json:"id"`
	PublicID      string          `json:"public_id"`
	UserID        string          `json:"-"`
	Items         []LineItemTotal `json:"products"`
	PaymentKind   PaymentKind     `json:"payment_kind"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	RestAmount    decimal.Decimal `json:"rest_amount"`
	CreatedAt     time.Time       `json:"created"`
}

// Compute derives line totals, the grand total, and the change due from raw
// purchase data. It is a pure function: the caller supplies the timestamp and
// no identifiers are assigned. An empty cart is rejected.
func Compute(items []LineItem, payment Payment, now time.Time) (Receipt, error) {
	if len(items) == 0 {
		return Receipt{}, common.NewValidationError("receipt must contain at least one product")
	}
	if _, err := ParsePaymentKind(string(payment.Kind)); err != nil {
		return Receipt{}, err
	}
	if payment.Amount.LessThanOrEqual(decimal.Zero) {
		return Receipt{}, common.NewValidationError("payment amount must be positive")
	}

	totals := make([]LineItemTotal, 0, len(items))
	totalAmount := decimal.Zero
	for _, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			return Receipt{}, common.NewValidationError("product name must not be empty")
		}
		if item.Price.LessThanOrEqual(decimal.Zero) {
			return Receipt{}, common.NewValidationError("product price must be positive")
		}
		if item.Quantity <= 0 {
			return Receipt{}, common.NewValidationError("product quantity must be positive")
		}
		lineTotal := item.Price.Mul(decimal.NewFromInt(item.Quantity)).Round(2)
		totalAmount = totalAmount.Add(lineTotal)
		totals = append(totals, LineItemTotal{
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
			Total:    lineTotal,
		})
	}

	rest := payment.Amount.Sub(totalAmount)
	if rest.IsNegative() {
		rest = decimal.Zero
	}

	return Receipt{
		Items:         totals,
		PaymentKind:   payment.Kind,
		PaymentAmount: payment.Amount.Round(2),
		TotalAmount:   totalAmount.Round(2),
		RestAmount:    rest.Round(2),
		CreatedAt:     now,
	}, nil
}
