package domain

// AppSettings is the pharmacy configuration singleton, replaced wholesale
// on save. The expiry-email flag is display-only; no mail is ever sent.
type AppSettings struct {
	PharmacyName             string  `db:"pharmacy_name" json:"pharmacy_name"`
	Address                  string  `db:"address" json:"address"`
	PhoneNumber              string  `db:"phone_number" json:"phone_number"`
	Email                    string  `db:"email" json:"email"`
	CurrencySymbol           string  `db:"currency_symbol" json:"currency_symbol"`
	TaxRate                  float64 `db:"tax_rate" json:"tax_rate"`
	EnableExpiryEmailAlerts  bool    `db:"enable_expiry_email_alerts" json:"enable_expiry_email_alerts"`
	ExpiryAlertThresholdDays int     `db:"expiry_alert_threshold_days" json:"expiry_alert_threshold_days"`
}

// DefaultSettings returns the first-run configuration.
func DefaultSettings() AppSettings {
	return AppSettings{
		PharmacyName:             "GiDi Pharmacy",
		Address:                  "Accra, Ghana",
		PhoneNumber:              "+233 00 000 0000",
		Email:                    "contact@gidipharmacy.com",
		CurrencySymbol:           "₵",
		TaxRate:                  0,
		EnableExpiryEmailAlerts:  false,
		ExpiryAlertThresholdDays: 90,
	}
}
