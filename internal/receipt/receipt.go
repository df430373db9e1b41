// Package receipt renders a sale as a printable HTML document. The output
// is handed to the client as-is and never persisted.
package receipt

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"gidipos/m/domain"
)

var tmpl = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"money": func(symbol string, amount float64) string {
		return fmt.Sprintf("%s%.2f", symbol, amount)
	},
}).Parse(receiptHTML))

type line struct {
	Name     string
	Quantity int
	Amount   float64
}

type viewModel struct {
	PharmacyName   string
	Address        string
	PhoneNumber    string
	CurrencySymbol string
	Date           string
	ReceiptNo      string
	CustomerName   string
	PaymentMethod  domain.PaymentMethod
	Lines          []line
	Subtotal       float64
	TaxRate        float64
	Tax            float64
	Total          float64
}

// Render writes the receipt document for a completed sale.
func Render(w io.Writer, sale domain.Sale, settings domain.AppSettings) error {
	vm := viewModel{
		PharmacyName:   settings.PharmacyName,
		Address:        settings.Address,
		PhoneNumber:    settings.PhoneNumber,
		CurrencySymbol: settings.CurrencySymbol,
		Date:           time.UnixMilli(sale.Timestamp).Format("02 Jan 2006 15:04"),
		ReceiptNo:      shortID(sale.ID),
		CustomerName:   sale.CustomerName,
		PaymentMethod:  sale.PaymentMethod,
		Subtotal:       sale.Subtotal,
		TaxRate:        sale.TaxRate,
		Tax:            sale.Tax,
		Total:          sale.TotalAmount,
	}
	for _, item := range sale.Items {
		vm.Lines = append(vm.Lines, line{
			Name:     item.Name,
			Quantity: item.CartQuantity,
			Amount:   item.Price * float64(item.CartQuantity),
		})
	}
	return tmpl.Execute(w, vm)
}

// shortID keeps the last six characters as the printed receipt number.
func shortID(id string) string {
	if len(id) <= 6 {
		return id
	}
	return id[len(id)-6:]
}

const receiptHTML = `<html>
<head>
<title>Receipt - {{.PharmacyName}}</title>
<style>
body { font-family: 'Courier New', monospace; font-size: 12px; padding: 20px; text-align: center; }
.header { margin-bottom: 10px; border-bottom: 1px dashed #000; padding-bottom: 10px; }
.header h1 { font-size: 16px; margin: 0; font-weight: bold; }
.header p { margin: 2px 0; font-size: 10px; }
.info { text-align: left; margin-bottom: 10px; font-size: 10px; }
table { width: 100%; text-align: left; margin-bottom: 10px; }
th { border-bottom: 1px solid #000; }
td { padding: 4px 0; }
.totals { border-top: 1px dashed #000; padding-top: 10px; text-align: right; }
.totals div { margin-bottom: 2px; }
.footer { margin-top: 20px; font-size: 10px; border-top: 1px solid #000; padding-top: 10px; }
</style>
</head>
<body>
<div class="header">
<h1>{{.PharmacyName}}</h1>
<p>{{.Address}}</p>
<p>{{.PhoneNumber}}</p>
</div>
<div class="info">
<p>Date: {{.Date}}</p>
<p>Receipt #: {{.ReceiptNo}}</p>
<p>Customer: {{.CustomerName}}</p>
<p>Pay Method: {{.PaymentMethod}}</p>
</div>
<table>
<thead>
<tr><th>Item</th><th>Qty</th><th style="text-align:right">Amt</th></tr>
</thead>
<tbody>
{{range .Lines}}<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td style="text-align:right">{{money $.CurrencySymbol .Amount}}</td></tr>
{{end}}</tbody>
</table>
<div class="totals">
<div>Subtotal: {{money .CurrencySymbol .Subtotal}}</div>
<div>Tax ({{.TaxRate}}%): {{money .CurrencySymbol .Tax}}</div>
<div style="font-weight:bold; font-size:14px">Total: {{money .CurrencySymbol .Total}}</div>
</div>
<div class="footer">
<p>Thank you for your purchase!</p>
<p>Powered by GiDi Healthcare</p>
</div>
</body>
</html>
`
