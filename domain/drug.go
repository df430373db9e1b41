package domain

import "time"

// ExpiryDateLayout is the calendar-date format drugs carry, e.g. 2025-12-31.
const ExpiryDateLayout = "2006-01-02"

// LowStockThreshold is the fixed unit count below which a drug counts as
// low stock. Not configurable.
const LowStockThreshold = 20

type Drug struct {
	ID          string  `db:"id" json:"id"`
	Name        string  `db:"name" json:"name"`
	GenericName string  `db:"generic_name" json:"generic_name"`
	BatchNumber string  `db:"batch_number" json:"batch_number"`
	ExpiryDate  string  `db:"expiry_date" json:"expiry_date"`
	Quantity    int     `db:"quantity" json:"quantity"`
	Price       float64 `db:"price" json:"price"`
	Category    string  `db:"category" json:"category"`
	Description string  `db:"description" json:"description,omitempty"`
}

// ExpiryStatus classifies a drug's expiry date against a reference day.
type ExpiryStatus string

const (
	ExpiryOK      ExpiryStatus = "OK"
	ExpirySoon    ExpiryStatus = "EXPIRING_SOON"
	ExpiryExpired ExpiryStatus = "EXPIRED"
)

// ExpiryStatusOn classifies the drug relative to today: expired when the
// expiry date is strictly before today, expiring soon when it falls within
// thresholdDays of today inclusive. An unparseable date reads as OK.
func (d Drug) ExpiryStatusOn(today time.Time, thresholdDays int) ExpiryStatus {
	expiry, err := time.Parse(ExpiryDateLayout, d.ExpiryDate)
	if err != nil {
		return ExpiryOK
	}
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if expiry.Before(day) {
		return ExpiryExpired
	}
	if !expiry.After(day.AddDate(0, 0, thresholdDays)) {
		return ExpirySoon
	}
	return ExpiryOK
}

// LowStock reports whether remaining quantity is below the fixed threshold.
func (d Drug) LowStock() bool {
	return d.Quantity < LowStockThreshold
}
