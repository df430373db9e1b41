package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gidipos/m/domain"
	"gidipos/m/internal/assistant"
	"gidipos/m/internal/database"
	"gidipos/m/internal/migrations"
	"gidipos/m/internal/store"
)

func newTestHandler(t *testing.T) (*Handler, http.Handler, *store.Store) {
	t.Helper()
	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))

	st := store.New(db)
	// No API key: the assistant reports an error and the handler falls
	// back, which is exactly what these tests exercise.
	ai := assistant.NewClient("", "gemini-2.5-flash", time.Second)
	h := New(st, ai, "test_secret", time.Hour)
	return h, h.Router(), st
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, router http.Handler, username, role string) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"password": "secret1234",
		"name":     "Test " + username,
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func createDrug(t *testing.T, router http.Handler, token string, name string, quantity int, price float64) domain.Drug {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/inventory/", token, map[string]any{
		"name":        name,
		"expiry_date": "2027-06-30",
		"quantity":    quantity,
		"price":       price,
		"category":    "Test",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var drug domain.Drug
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &drug))
	return drug
}

func TestRegisterAndLogin(t *testing.T) {
	_, router, _ := newTestHandler(t)

	token := registerUser(t, router, "ama", "ADMIN")
	require.NotEmpty(t, token)

	// Duplicate username is rejected and reported as such.
	rec := doJSON(t, router, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "ama", "password": "other1234", "name": "Other", "role": "STAFF",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	// The response never carries a password hash.
	rec = doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "ama", "password": "secret1234",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "password_hash")

	// Unknown user and wrong password produce the same message.
	wrongPass := doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "ama", "password": "nope",
	})
	noUser := doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "ghost", "password": "nope",
	})
	require.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	require.Equal(t, http.StatusUnauthorized, noUser.Code)
	require.Equal(t, wrongPass.Body.String(), noUser.Body.String())
}

func TestRegisterValidation(t *testing.T) {
	_, router, _ := newTestHandler(t)
	rec := doJSON(t, router, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "ama", "password": "secret1234", "name": "Ama", "role": "INTERN",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInventoryRoleGates(t *testing.T) {
	_, router, _ := newTestHandler(t)
	adminToken := registerUser(t, router, "admin", "ADMIN")
	staffToken := registerUser(t, router, "staff", "STAFF")

	rec := doJSON(t, router, http.MethodPost, "/inventory/", staffToken, map[string]any{
		"name": "Paracetamol", "quantity": 10, "price": 5.0,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	drug := createDrug(t, router, adminToken, "Paracetamol 500mg", 100, 15.00)

	rec = doJSON(t, router, http.MethodDelete, "/inventory/"+drug.ID, staffToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/inventory/"+drug.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestInventoryRequiresAuth(t *testing.T) {
	_, router, _ := newTestHandler(t)
	rec := doJSON(t, router, http.MethodGet, "/inventory/", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPOSFlow(t *testing.T) {
	_, router, st := newTestHandler(t)
	token := registerUser(t, router, "cashier", "PHARMACIST")
	drug := createDrug(t, router, token, "Paracetamol 500mg", 100, 15.00)

	// Two units in the cart.
	rec := doJSON(t, router, http.MethodPost, "/pos/cart/items", token, map[string]string{"drug_id": drug.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/pos/cart/items/%s/quantity", drug.ID), token, map[string]int{"delta": 1})
	require.Equal(t, http.StatusOK, rec.Code)

	var cart struct {
		Items []domain.CartItem `json:"items"`
		Total float64           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	require.Len(t, cart.Items, 1)
	require.Equal(t, 2, cart.Items[0].CartQuantity)
	require.Equal(t, 30.00, cart.Total) // default tax rate is 0

	// An out-of-range adjustment leaves the cart unchanged.
	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/pos/cart/items/%s/quantity", drug.ID), token, map[string]int{"delta": 500})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	require.Equal(t, 2, cart.Items[0].CartQuantity)

	rec = doJSON(t, router, http.MethodPost, "/pos/checkout", token, map[string]string{"payment_method": "CASH"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sale domain.Sale
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sale))
	require.Equal(t, 30.00, sale.TotalAmount)
	require.Equal(t, "Walk-in Customer", sale.CustomerName)

	// Stock went down by the sold quantity.
	after, err := st.GetDrug(drug.ID)
	require.NoError(t, err)
	require.Equal(t, 98, after.Quantity)

	// The cart is now empty; a second checkout is a guarded no-op.
	rec = doJSON(t, router, http.MethodPost, "/pos/checkout", token, map[string]string{"payment_method": "CASH"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	sales, err := st.Sales()
	require.NoError(t, err)
	require.Len(t, sales, 1)
}

func TestCheckoutRejectsUnknownPaymentMethod(t *testing.T) {
	_, router, _ := newTestHandler(t)
	token := registerUser(t, router, "cashier", "STAFF")
	rec := doJSON(t, router, http.MethodPost, "/pos/checkout", token, map[string]string{"payment_method": "CHEQUE"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaleReceipt(t *testing.T) {
	_, router, _ := newTestHandler(t)
	token := registerUser(t, router, "cashier", "STAFF")
	admin := registerUser(t, router, "admin", "ADMIN")
	drug := createDrug(t, router, admin, "Ibuprofen 400mg", 50, 20.00)

	rec := doJSON(t, router, http.MethodPost, "/pos/cart/items", token, map[string]string{"drug_id": drug.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/pos/checkout", token, map[string]string{"payment_method": "MOMO", "customer_name": "Kofi"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var sale domain.Sale
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sale))

	rec = doJSON(t, router, http.MethodGet, "/sales/"+sale.ID+"/receipt", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	require.Contains(t, rec.Body.String(), "Ibuprofen 400mg")
	require.Contains(t, rec.Body.String(), "Kofi")
}

func TestSettingsRoleGate(t *testing.T) {
	_, router, _ := newTestHandler(t)
	staff := registerUser(t, router, "staff", "STAFF")
	admin := registerUser(t, router, "admin", "ADMIN")

	payload := map[string]any{
		"pharmacy_name":               "GiDi Pharmacy",
		"currency_symbol":             "₵",
		"tax_rate":                    12.5,
		"expiry_alert_threshold_days": 60,
	}
	rec := doJSON(t, router, http.MethodPut, "/settings/", staff, payload)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPut, "/settings/", admin, payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/settings/", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var settings domain.AppSettings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	require.Equal(t, 12.5, settings.TaxRate)
}

func TestInventoryAlerts(t *testing.T) {
	_, router, _ := newTestHandler(t)
	admin := registerUser(t, router, "admin", "ADMIN")

	expired := time.Now().AddDate(0, 0, -1).Format(domain.ExpiryDateLayout)
	soon := time.Now().AddDate(0, 0, 30).Format(domain.ExpiryDateLayout)
	fresh := time.Now().AddDate(2, 0, 0).Format(domain.ExpiryDateLayout)

	for _, d := range []struct {
		name   string
		expiry string
		qty    int
	}{
		{"Old Stock", expired, 100},
		{"Short Dated", soon, 100},
		{"Fresh Low", fresh, 5},
	} {
		rec := doJSON(t, router, http.MethodPost, "/inventory/", admin, map[string]any{
			"name": d.name, "expiry_date": d.expiry, "quantity": d.qty, "price": 1.0,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, router, http.MethodGet, "/inventory/alerts", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var alerts struct {
		Expired      []domain.Drug `json:"expired"`
		ExpiringSoon []domain.Drug `json:"expiring_soon"`
		LowStock     []domain.Drug `json:"low_stock"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alerts))
	require.Len(t, alerts.Expired, 1)
	require.Len(t, alerts.ExpiringSoon, 1)
	require.Len(t, alerts.LowStock, 1)
	require.Equal(t, "Old Stock", alerts.Expired[0].Name)
	require.Equal(t, "Fresh Low", alerts.LowStock[0].Name)
}

func TestAnalyticsEndpoint(t *testing.T) {
	_, router, _ := newTestHandler(t)
	token := registerUser(t, router, "cashier", "PHARMACIST")
	a := createDrug(t, router, token, "A", 50, 1.00)
	b := createDrug(t, router, token, "B", 50, 1.00)

	// Sell 3×A, then 5×B in a second sale.
	rec := doJSON(t, router, http.MethodPost, "/pos/cart/items", token, map[string]string{"drug_id": a.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/pos/cart/items/%s/quantity", a.ID), token, map[string]int{"delta": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/pos/checkout", token, map[string]string{"payment_method": "CASH"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/pos/cart/items", token, map[string]string{"drug_id": b.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/pos/cart/items/%s/quantity", b.ID), token, map[string]int{"delta": 4})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/pos/checkout", token, map[string]string{"payment_method": "MOMO"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/analytics", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		TopProducts []struct {
			Name     string `json:"name"`
			Quantity int    `json:"quantity"`
		} `json:"top_products"`
		PaymentMethods map[string]int `json:"payment_methods"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.TopProducts, 2)
	require.Equal(t, "B", resp.TopProducts[0].Name)
	require.Equal(t, 5, resp.TopProducts[0].Quantity)
	require.Equal(t, 1, resp.PaymentMethods["CASH"])
	require.Equal(t, 1, resp.PaymentMethods["MOMO"])
}

func TestChatFallsBackOnFailure(t *testing.T) {
	_, router, _ := newTestHandler(t)
	token := registerUser(t, router, "staff", "STAFF")

	rec := doJSON(t, router, http.MethodPost, "/assistant/chat", token, map[string]string{"message": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Reply   string `json:"reply"`
		IsError bool   `json:"is_error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.IsError)
	require.Equal(t, assistant.FallbackMessage, resp.Reply)
}
