package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"gidipos/m/domain"
	"gidipos/m/internal/analytics"
	"gidipos/m/internal/assistant"
	"gidipos/m/internal/pos"
	"gidipos/m/internal/receipt"
	"gidipos/m/internal/store"
)

type ctxKey string

const (
	ctxUsername ctxKey = "username"
	ctxRole     ctxKey = "role"
)

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	store     *store.Store
	carts     *pos.Carts
	assistant *assistant.Client
	secret    string
	tokenTTL  time.Duration
	validate  *validator.Validate

	chatMu sync.Mutex
	chats  map[string][]assistant.Turn
}

// New constructs a Handler.
func New(st *store.Store, ai *assistant.Client, secret string, tokenTTL time.Duration) *Handler {
	return &Handler{
		store:     st,
		carts:     pos.NewCarts(),
		assistant: ai,
		secret:    secret,
		tokenTTL:  tokenTTL,
		validate:  validator.New(),
		chats:     make(map[string][]assistant.Turn),
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(limited chi.Router) {
			limited.Use(httprate.LimitByIP(10, time.Minute))
			limited.Post("/register", h.register)
			limited.Post("/login", h.login)
		})
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Post("/reset-password", h.resetPassword)
		})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/inventory", func(r chi.Router) {
			r.Get("/", h.listInventory)
			r.Post("/", h.createDrug)
			r.Put("/{id}", h.updateDrug)
			r.Delete("/{id}", h.deleteDrug)
			r.Get("/search", h.searchInventory)
			r.Get("/alerts", h.inventoryAlerts)
		})

		pr.Route("/pos", func(r chi.Router) {
			r.Get("/cart", h.getCart)
			r.Post("/cart/items", h.addCartItem)
			r.Delete("/cart/items/{id}", h.removeCartItem)
			r.Post("/cart/items/{id}/quantity", h.adjustCartItem)
			r.Post("/checkout", h.checkout)
		})

		pr.Route("/sales", func(r chi.Router) {
			r.Get("/", h.listSales)
			r.Get("/{id}", h.getSale)
			r.Get("/{id}/receipt", h.saleReceipt)
		})

		pr.Get("/analytics", h.analytics)
		pr.Get("/dashboard", h.dashboard)

		pr.Route("/settings", func(r chi.Router) {
			r.Get("/", h.getSettings)
			r.Put("/", h.updateSettings)
		})

		pr.Post("/assistant/chat", h.chat)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Authentication helpers

type authClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(username string, role domain.Role) (string, error) {
	claims := authClaims{
		Username: username,
		Role:     string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(h.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok {
			respondError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUsername, claims.Username)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...domain.Role) bool {
	role := r.Context().Value(ctxRole)
	if role == nil {
		respondError(w, http.StatusUnauthorized, "missing role")
		return false
	}
	current := domain.Role(role.(string))
	for _, allowedRole := range allowed {
		if current == allowedRole {
			return true
		}
	}
	respondError(w, http.StatusForbidden, "insufficient permissions")
	return false
}

func currentUsername(r *http.Request) string {
	if v := r.Context().Value(ctxUsername); v != nil {
		return v.(string)
	}
	return ""
}

// Auth handlers

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=4"`
	Name     string `json:"name" validate:"required"`
	Role     string `json:"role" validate:"required"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "username, password, name and role are required")
		return
	}
	role := domain.Role(req.Role)
	if !domain.ValidRole(role) {
		respondError(w, http.StatusBadRequest, "role must be ADMIN, PHARMACIST or STAFF")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}

	user := domain.User{
		Username:     req.Username,
		PasswordHash: string(hashed),
		Name:         req.Name,
		Role:         role,
	}
	if err := h.store.AddUser(user); err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			respondError(w, http.StatusConflict, "username already exists")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to register user")
		return
	}

	token, err := h.generateToken(user.Username, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	user.PasswordHash = ""
	respondJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// One generic message for unknown user and wrong password alike, so
	// usernames cannot be enumerated.
	user, err := h.store.FindUser(req.Username)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, err := h.generateToken(user.Username, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	user.PasswordHash = ""
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		NewPassword string `json:"new_password" validate:"required,min=4"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		respondError(w, http.StatusBadRequest, "new_password is required")
		return
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(payload.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}
	if err := h.store.SetUserPassword(currentUsername(r), string(hashed)); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update password")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

// Inventory handlers

type drugRequest struct {
	Name        string  `json:"name" validate:"required"`
	GenericName string  `json:"generic_name"`
	BatchNumber string  `json:"batch_number"`
	ExpiryDate  string  `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
	Quantity    int     `json:"quantity" validate:"gte=0"`
	Price       float64 `json:"price" validate:"gte=0"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
}

func (req drugRequest) toDrug(id string) domain.Drug {
	expiry := req.ExpiryDate
	if expiry == "" {
		expiry = time.Now().Format(domain.ExpiryDateLayout)
	}
	return domain.Drug{
		ID:          id,
		Name:        req.Name,
		GenericName: req.GenericName,
		BatchNumber: req.BatchNumber,
		ExpiryDate:  expiry,
		Quantity:    req.Quantity,
		Price:       req.Price,
		Category:    req.Category,
		Description: req.Description,
	}
}

func (h *Handler) listInventory(w http.ResponseWriter, r *http.Request) {
	inventory, err := h.store.Inventory()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load inventory")
		return
	}
	respondJSON(w, http.StatusOK, inventory)
}

func (h *Handler) createDrug(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin, domain.RolePharmacist) {
		return
	}
	var req drugRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "name is required; quantity and price must not be negative")
		return
	}
	drug := req.toDrug(uuid.NewString())
	if err := h.store.AddDrug(drug); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to add drug")
		return
	}
	respondJSON(w, http.StatusCreated, drug)
}

func (h *Handler) updateDrug(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin, domain.RolePharmacist) {
		return
	}
	id := chi.URLParam(r, "id")
	var req drugRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "name is required; quantity and price must not be negative")
		return
	}
	drug := req.toDrug(id)
	if err := h.store.UpdateDrug(drug); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "drug not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to update drug")
		return
	}
	respondJSON(w, http.StatusOK, drug)
}

func (h *Handler) deleteDrug(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteDrug(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "drug not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to delete drug")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) searchInventory(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("query")))
	inventory, err := h.store.Inventory()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to search inventory")
		return
	}
	results := make([]domain.Drug, 0)
	for _, d := range inventory {
		if query != "" &&
			!strings.Contains(strings.ToLower(d.Name), query) &&
			!strings.Contains(strings.ToLower(d.GenericName), query) {
			continue
		}
		results = append(results, d)
		if len(results) == 25 {
			break
		}
	}
	respondJSON(w, http.StatusOK, results)
}

type alertsResponse struct {
	Expired      []domain.Drug `json:"expired"`
	ExpiringSoon []domain.Drug `json:"expiring_soon"`
	LowStock     []domain.Drug `json:"low_stock"`
}

func (h *Handler) inventoryAlerts(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.Settings()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load settings")
		return
	}
	inventory, err := h.store.Inventory()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load inventory")
		return
	}
	resp := alertsResponse{
		Expired:      []domain.Drug{},
		ExpiringSoon: []domain.Drug{},
		LowStock:     []domain.Drug{},
	}
	now := time.Now()
	for _, d := range inventory {
		switch d.ExpiryStatusOn(now, settings.ExpiryAlertThresholdDays) {
		case domain.ExpiryExpired:
			resp.Expired = append(resp.Expired, d)
		case domain.ExpirySoon:
			resp.ExpiringSoon = append(resp.ExpiringSoon, d)
		}
		if d.LowStock() {
			resp.LowStock = append(resp.LowStock, d)
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// POS handlers

type cartResponse struct {
	Items    []domain.CartItem `json:"items"`
	Subtotal float64           `json:"subtotal"`
	Tax      float64           `json:"tax"`
	Total    float64           `json:"total"`
}

func (h *Handler) cartState(username string) (cartResponse, error) {
	settings, err := h.store.Settings()
	if err != nil {
		return cartResponse{}, err
	}
	items := h.carts.Items(username)
	resp := cartResponse{Items: items}
	for _, item := range items {
		resp.Subtotal += item.Price * float64(item.CartQuantity)
	}
	resp.Tax = resp.Subtotal * (settings.TaxRate / 100)
	resp.Total = resp.Subtotal + resp.Tax
	return resp, nil
}

func (h *Handler) respondCart(w http.ResponseWriter, username string, status int) {
	resp, err := h.cartState(username)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load cart")
		return
	}
	respondJSON(w, status, resp)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	h.respondCart(w, currentUsername(r), http.StatusOK)
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DrugID string `json:"drug_id" validate:"required"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "drug_id is required")
		return
	}
	drug, err := h.store.GetDrug(req.DrugID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "drug not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load drug")
		return
	}
	h.carts.Add(currentUsername(r), drug)
	h.respondCart(w, currentUsername(r), http.StatusOK)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	h.carts.Remove(currentUsername(r), chi.URLParam(r, "id"))
	h.respondCart(w, currentUsername(r), http.StatusOK)
}

func (h *Handler) adjustCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta int `json:"delta" validate:"required"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "delta must be a non-zero integer")
		return
	}
	// An out-of-range delta leaves the cart unchanged; the response simply
	// reflects the current state.
	h.carts.Adjust(currentUsername(r), chi.URLParam(r, "id"), req.Delta)
	h.respondCart(w, currentUsername(r), http.StatusOK)
}

type checkoutRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required"`
	CustomerName  string `json:"customer_name"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	method := domain.PaymentMethod(req.PaymentMethod)
	if !domain.ValidPaymentMethod(method) {
		respondError(w, http.StatusBadRequest, "payment_method must be CASH, MOMO or CARD")
		return
	}
	settings, err := h.store.Settings()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load settings")
		return
	}

	username := currentUsername(r)
	items := h.carts.Items(username)
	sale, err := pos.Checkout(items, settings.TaxRate, method, req.CustomerName, time.Now())
	if err != nil {
		if errors.Is(err, pos.ErrEmptyCart) {
			respondError(w, http.StatusBadRequest, "cart is empty")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to complete sale")
		return
	}

	if err := h.store.RecordSale(sale); err != nil {
		var stockErr *store.InsufficientStockError
		if errors.As(err, &stockErr) {
			respondError(w, http.StatusConflict, stockErr.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to record sale")
		return
	}
	h.carts.Clear(username)

	respondJSON(w, http.StatusCreated, sale)
}

// Sales handlers

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.store.Sales()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load sales")
		return
	}
	respondJSON(w, http.StatusOK, sales)
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.store.GetSale(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "sale not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load sale")
		return
	}
	respondJSON(w, http.StatusOK, sale)
}

func (h *Handler) saleReceipt(w http.ResponseWriter, r *http.Request) {
	sale, err := h.store.GetSale(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "sale not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load sale")
		return
	}
	settings, err := h.store.Settings()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load settings")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := receipt.Render(w, sale, settings); err != nil {
		log.Printf("unable to render receipt %s: %v", sale.ID, err)
	}
}

// Reports

type analyticsResponse struct {
	RevenueByDay   []analytics.RevenuePoint     `json:"revenue_by_day"`
	TopProducts    []analytics.ProductRank      `json:"top_products"`
	PaymentMethods map[domain.PaymentMethod]int `json:"payment_methods"`
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	sales, err := h.store.Sales()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load sales")
		return
	}
	respondJSON(w, http.StatusOK, analyticsResponse{
		RevenueByDay:   analytics.RevenueByDay(sales),
		TopProducts:    analytics.TopProducts(sales),
		PaymentMethods: analytics.PaymentMethodCounts(sales),
	})
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	inventory, err := h.store.Inventory()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load inventory")
		return
	}
	sales, err := h.store.Sales()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load sales")
		return
	}
	settings, err := h.store.Settings()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load settings")
		return
	}
	respondJSON(w, http.StatusOK, analytics.Summarize(inventory, sales, settings.ExpiryAlertThresholdDays, time.Now()))
}

// Settings handlers

type settingsRequest struct {
	PharmacyName             string  `json:"pharmacy_name" validate:"required"`
	Address                  string  `json:"address"`
	PhoneNumber              string  `json:"phone_number"`
	Email                    string  `json:"email" validate:"omitempty,email"`
	CurrencySymbol           string  `json:"currency_symbol" validate:"required"`
	TaxRate                  float64 `json:"tax_rate" validate:"gte=0"`
	EnableExpiryEmailAlerts  bool    `json:"enable_expiry_email_alerts"`
	ExpiryAlertThresholdDays int     `json:"expiry_alert_threshold_days" validate:"gte=0"`
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.Settings()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load settings")
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "pharmacy_name and currency_symbol are required; tax_rate and expiry_alert_threshold_days must not be negative")
		return
	}
	settings := domain.AppSettings{
		PharmacyName:             req.PharmacyName,
		Address:                  req.Address,
		PhoneNumber:              req.PhoneNumber,
		Email:                    req.Email,
		CurrencySymbol:           req.CurrencySymbol,
		TaxRate:                  req.TaxRate,
		EnableExpiryEmailAlerts:  req.EnableExpiryEmailAlerts,
		ExpiryAlertThresholdDays: req.ExpiryAlertThresholdDays,
	}
	if err := h.store.SaveSettings(settings); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to save settings")
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

// Assistant

type chatRequest struct {
	Message string           `json:"message" validate:"required"`
	Image   *assistant.Image `json:"image"`
}

type chatResponse struct {
	Reply   string `json:"reply"`
	IsError bool   `json:"is_error"`
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	username := currentUsername(r)
	h.chatMu.Lock()
	history := append([]assistant.Turn{}, h.chats[username]...)
	h.chatMu.Unlock()

	reply, err := h.assistant.Send(r.Context(), history, req.Message, req.Image)
	if err != nil {
		// The conversation continues; the failed exchange is not added to
		// the history.
		log.Printf("assistant error for %s: %v", username, err)
		respondJSON(w, http.StatusOK, chatResponse{Reply: assistant.FallbackMessage, IsError: true})
		return
	}

	h.chatMu.Lock()
	h.chats[username] = append(h.chats[username],
		assistant.Turn{Role: "user", Text: req.Message},
		assistant.Turn{Role: "model", Text: reply},
	)
	h.chatMu.Unlock()

	respondJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

// Helpers

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
