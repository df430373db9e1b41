package domain

// PaymentMethod is how a sale was settled.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "CASH"
	PaymentMomo PaymentMethod = "MOMO"
	PaymentCard PaymentMethod = "CARD"
)

// ValidPaymentMethod reports whether m is one of the accepted methods.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentCash, PaymentMomo, PaymentCard:
		return true
	}
	return false
}

// CartItem is a drug snapshot plus the quantity requested at the till.
type CartItem struct {
	Drug
	CartQuantity int `db:"cart_quantity" json:"cart_quantity"`
}

// Sale is an immutable record of a completed transaction. Items are
// point-in-time copies; later drug edits never change a historical sale.
type Sale struct {
	ID            string        `db:"id" json:"id"`
	Items         []CartItem    `json:"items"`
	Subtotal      float64       `db:"subtotal" json:"subtotal"`
	Tax           float64       `db:"tax" json:"tax"`
	TaxRate       float64       `db:"tax_rate" json:"tax_rate"`
	TotalAmount   float64       `db:"total_amount" json:"total_amount"`
	Timestamp     int64         `db:"timestamp" json:"timestamp"`
	PaymentMethod PaymentMethod `db:"payment_method" json:"payment_method"`
	CustomerName  string        `db:"customer_name" json:"customer_name,omitempty"`
}
