package pos

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"gidipos/m/domain"
)

// ErrEmptyCart guards checkout: an empty cart is a no-op, never a sale.
var ErrEmptyCart = errors.New("cart is empty")

// DefaultCustomerName is used when no customer name is given.
const DefaultCustomerName = "Walk-in Customer"

// Checkout converts cart lines into an immutable sale. Totals are
// subtotal = Σ price×quantity, tax = subtotal×taxRate/100, total =
// subtotal + tax. The caller persists the sale and the matching stock
// decrement through the store.
func Checkout(items []domain.CartItem, taxRate float64, method domain.PaymentMethod, customerName string, now time.Time) (domain.Sale, error) {
	if len(items) == 0 {
		return domain.Sale{}, ErrEmptyCart
	}

	var subtotal float64
	for _, item := range items {
		subtotal += item.Price * float64(item.CartQuantity)
	}
	tax := subtotal * (taxRate / 100)

	if customerName == "" {
		customerName = DefaultCustomerName
	}

	snapshot := make([]domain.CartItem, len(items))
	copy(snapshot, items)

	return domain.Sale{
		ID:            uuid.NewString(),
		Items:         snapshot,
		Subtotal:      subtotal,
		Tax:           tax,
		TaxRate:       taxRate,
		TotalAmount:   subtotal + tax,
		Timestamp:     now.UnixMilli(),
		PaymentMethod: method,
		CustomerName:  customerName,
	}, nil
}
