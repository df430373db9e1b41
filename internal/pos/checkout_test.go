package pos

import (
	"errors"
	"math"
	"testing"
	"time"

	"gidipos/m/domain"
)

func TestCheckoutTotals(t *testing.T) {
	items := []domain.CartItem{
		{Drug: testDrug("d1", 10, 15.00), CartQuantity: 2},
		{Drug: testDrug("d2", 10, 45.50), CartQuantity: 1},
	}
	now := time.Now()
	sale, err := Checkout(items, 12.5, domain.PaymentCard, "Ama", now)
	if err != nil {
		t.Fatalf("Checkout returned error: %v", err)
	}

	wantSubtotal := 75.50
	if math.Abs(sale.Subtotal-wantSubtotal) > 1e-9 {
		t.Fatalf("expected subtotal %.2f got %.2f", wantSubtotal, sale.Subtotal)
	}
	wantTax := wantSubtotal * 0.125
	if math.Abs(sale.Tax-wantTax) > 1e-9 {
		t.Fatalf("expected tax %.4f got %.4f", wantTax, sale.Tax)
	}
	if math.Abs(sale.TotalAmount-(sale.Subtotal+sale.Tax)) > 1e-9 {
		t.Fatalf("total %.4f must equal subtotal+tax %.4f", sale.TotalAmount, sale.Subtotal+sale.Tax)
	}
	if sale.ID == "" {
		t.Fatalf("expected a sale id")
	}
	if sale.Timestamp != now.UnixMilli() {
		t.Fatalf("expected timestamp %d got %d", now.UnixMilli(), sale.Timestamp)
	}
	if sale.CustomerName != "Ama" {
		t.Fatalf("expected customer Ama got %q", sale.CustomerName)
	}
}

func TestCheckoutZeroTaxRate(t *testing.T) {
	items := []domain.CartItem{
		{Drug: testDrug("d1", 10, 15.00), CartQuantity: 2},
	}
	sale, err := Checkout(items, 0, domain.PaymentCash, "", time.Now())
	if err != nil {
		t.Fatalf("Checkout returned error: %v", err)
	}
	if sale.TotalAmount != 30.00 {
		t.Fatalf("expected total 30.00 got %.2f", sale.TotalAmount)
	}
	if sale.Tax != 0 {
		t.Fatalf("expected zero tax got %.2f", sale.Tax)
	}
	if sale.CustomerName != DefaultCustomerName {
		t.Fatalf("expected default customer name got %q", sale.CustomerName)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	_, err := Checkout(nil, 0, domain.PaymentCash, "", time.Now())
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart got %v", err)
	}
}

func TestCheckoutSnapshotsItems(t *testing.T) {
	items := []domain.CartItem{
		{Drug: testDrug("d1", 10, 5), CartQuantity: 1},
	}
	sale, err := Checkout(items, 0, domain.PaymentMomo, "", time.Now())
	if err != nil {
		t.Fatalf("Checkout returned error: %v", err)
	}
	items[0].CartQuantity = 99
	if sale.Items[0].CartQuantity != 1 {
		t.Fatalf("sale items must be point-in-time copies")
	}
}
