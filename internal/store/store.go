package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"gidipos/m/domain"
)

// Document keys. Each key holds one JSON-serialized blob, the way the
// original storage laid out its state.
const (
	keyInventory = "inventory"
	keySales     = "sales"
	keySettings  = "settings"
	keyUsers     = "users"
)

// schemaVersion tags every persisted document so a future shape change can
// migrate stored data instead of trusting it blindly.
const schemaVersion = 1

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUsernameTaken indicates a registration against an existing username.
	ErrUsernameTaken = errors.New("username already exists")
)

// InsufficientStockError reports a checkout line that asked for more units
// than the inventory holds. The whole checkout fails; nothing is applied.
type InsufficientStockError struct {
	DrugID string
	Name   string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q", e.Name)
}

// Store is the typed persistence layer over the documents table. Loaded
// documents are cached in process; every mutation rewrites the whole
// document, last write wins. A single mutex serializes access so checkout
// stock adjustment is atomic with respect to other writers.
type Store struct {
	db *sqlx.DB

	mu          sync.Mutex
	inventory   []domain.Drug
	invLoaded   bool
	sales       []domain.Sale
	salesLoaded bool
	settings    *domain.AppSettings
	users       []domain.User
	usersLoaded bool
}

// New constructs a Store over an opened database.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type docRow struct {
	Key     string `db:"key"`
	Version int    `db:"version"`
	Value   string `db:"value"`
}

func (s *Store) loadDoc(key string) ([]byte, bool, error) {
	var row docRow
	err := s.db.Get(&row, `SELECT key, version, value FROM documents WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load document %s: %w", key, err)
	}
	raw, err := migrateDoc(key, row.Version, []byte(row.Value))
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// migrateDoc upgrades a stored document to the current schema version.
func migrateDoc(key string, version int, raw []byte) ([]byte, error) {
	switch {
	case version == schemaVersion:
		return raw, nil
	case version > schemaVersion:
		return nil, fmt.Errorf("document %s has version %d, newer than supported %d", key, version, schemaVersion)
	default:
		return nil, fmt.Errorf("document %s has version %d with no migration path", key, version)
	}
}

func (s *Store) saveDoc(key string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", key, err)
	}
	_, err = s.db.Exec(`INSERT INTO documents (key, version, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(key) DO UPDATE SET version = excluded.version, value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, schemaVersion, string(value))
	if err != nil {
		return fmt.Errorf("save document %s: %w", key, err)
	}
	return nil
}

// seedDoc writes a document only when the key is absent, so first-run
// defaults never clobber existing state.
func (s *Store) seedDoc(key string, v any) (bool, error) {
	value, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("encode document %s: %w", key, err)
	}
	res, err := s.db.Exec(`INSERT OR IGNORE INTO documents (key, version, value) VALUES (?, ?, ?)`,
		key, schemaVersion, string(value))
	if err != nil {
		return false, fmt.Errorf("seed document %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Inventory

func (s *Store) loadInventoryLocked() error {
	if s.invLoaded {
		return nil
	}
	raw, found, err := s.loadDoc(keyInventory)
	if err != nil {
		return err
	}
	s.inventory = nil
	if found {
		if err := json.Unmarshal(raw, &s.inventory); err != nil {
			return fmt.Errorf("decode inventory: %w", err)
		}
	}
	s.invLoaded = true
	return nil
}

// Inventory returns the drug list in stored order.
func (s *Store) Inventory() ([]domain.Drug, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadInventoryLocked(); err != nil {
		return nil, err
	}
	out := make([]domain.Drug, len(s.inventory))
	copy(out, s.inventory)
	return out, nil
}

// GetDrug returns a single drug by id.
func (s *Store) GetDrug(id string) (domain.Drug, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadInventoryLocked(); err != nil {
		return domain.Drug{}, err
	}
	for _, d := range s.inventory {
		if d.ID == id {
			return d, nil
		}
	}
	return domain.Drug{}, ErrNotFound
}

// AddDrug appends a drug to the inventory.
func (s *Store) AddDrug(d domain.Drug) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadInventoryLocked(); err != nil {
		return err
	}
	next := append(append([]domain.Drug{}, s.inventory...), d)
	if err := s.saveDoc(keyInventory, next); err != nil {
		return err
	}
	s.inventory = next
	return nil
}

// AddDrugs appends drugs whose names are not already present and reports
// how many were added. Used by the catalog importer.
func (s *Store) AddDrugs(drugs []domain.Drug) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadInventoryLocked(); err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(s.inventory))
	for _, d := range s.inventory {
		seen[d.Name] = true
	}
	next := append([]domain.Drug{}, s.inventory...)
	added := 0
	for _, d := range drugs {
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		next = append(next, d)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	if err := s.saveDoc(keyInventory, next); err != nil {
		return 0, err
	}
	s.inventory = next
	return added, nil
}

// UpdateDrug replaces the drug with the same id.
func (s *Store) UpdateDrug(d domain.Drug) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadInventoryLocked(); err != nil {
		return err
	}
	next := make([]domain.Drug, len(s.inventory))
	copy(next, s.inventory)
	for i := range next {
		if next[i].ID == d.ID {
			next[i] = d
			if err := s.saveDoc(keyInventory, next); err != nil {
				return err
			}
			s.inventory = next
			return nil
		}
	}
	return ErrNotFound
}

// DeleteDrug removes the drug with the given id.
func (s *Store) DeleteDrug(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadInventoryLocked(); err != nil {
		return err
	}
	next := make([]domain.Drug, 0, len(s.inventory))
	found := false
	for _, d := range s.inventory {
		if d.ID == id {
			found = true
			continue
		}
		next = append(next, d)
	}
	if !found {
		return ErrNotFound
	}
	if err := s.saveDoc(keyInventory, next); err != nil {
		return err
	}
	s.inventory = next
	return nil
}

// SeedInventory writes the starter inventory if none has been stored yet.
func (s *Store) SeedInventory(drugs []domain.Drug) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted, err := s.seedDoc(keyInventory, drugs)
	if err != nil {
		return false, err
	}
	if inserted {
		s.inventory = append([]domain.Drug{}, drugs...)
		s.invLoaded = true
	}
	return inserted, nil
}

// Sales

func (s *Store) loadSalesLocked() error {
	if s.salesLoaded {
		return nil
	}
	raw, found, err := s.loadDoc(keySales)
	if err != nil {
		return err
	}
	s.sales = nil
	if found {
		if err := json.Unmarshal(raw, &s.sales); err != nil {
			return fmt.Errorf("decode sales: %w", err)
		}
	}
	s.salesLoaded = true
	return nil
}

// Sales returns the full ledger in append order.
func (s *Store) Sales() ([]domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadSalesLocked(); err != nil {
		return nil, err
	}
	out := make([]domain.Sale, len(s.sales))
	copy(out, s.sales)
	return out, nil
}

// GetSale returns a single sale by id.
func (s *Store) GetSale(id string) (domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadSalesLocked(); err != nil {
		return domain.Sale{}, err
	}
	for _, sale := range s.sales {
		if sale.ID == id {
			return sale, nil
		}
	}
	return domain.Sale{}, ErrNotFound
}

// RecordSale appends the sale to the ledger and decrements stock for every
// line. All lines are validated against current quantities first; if any
// would go negative the call fails with InsufficientStockError and nothing
// is applied.
func (s *Store) RecordSale(sale domain.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadInventoryLocked(); err != nil {
		return err
	}
	if err := s.loadSalesLocked(); err != nil {
		return err
	}

	index := make(map[string]int, len(s.inventory))
	for i, d := range s.inventory {
		index[d.ID] = i
	}
	for _, item := range sale.Items {
		i, ok := index[item.ID]
		if !ok || s.inventory[i].Quantity < item.CartQuantity {
			return &InsufficientStockError{DrugID: item.ID, Name: item.Name}
		}
	}

	nextInv := make([]domain.Drug, len(s.inventory))
	copy(nextInv, s.inventory)
	for _, item := range sale.Items {
		i := index[item.ID]
		nextInv[i].Quantity -= item.CartQuantity
	}
	nextSales := append(append([]domain.Sale{}, s.sales...), sale)

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("record sale: %w", err)
	}
	defer tx.Rollback()
	for key, v := range map[string]any{keyInventory: nextInv, keySales: nextSales} {
		value, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode document %s: %w", key, err)
		}
		if _, err := tx.Exec(`INSERT INTO documents (key, version, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
            ON CONFLICT(key) DO UPDATE SET version = excluded.version, value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
			key, schemaVersion, string(value)); err != nil {
			return fmt.Errorf("save document %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record sale: %w", err)
	}

	s.inventory = nextInv
	s.sales = nextSales
	return nil
}

// Settings

// Settings returns the stored configuration, or the defaults when nothing
// has been saved yet.
func (s *Store) Settings() (domain.AppSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings != nil {
		return *s.settings, nil
	}
	raw, found, err := s.loadDoc(keySettings)
	if err != nil {
		return domain.AppSettings{}, err
	}
	settings := domain.DefaultSettings()
	if found {
		if err := json.Unmarshal(raw, &settings); err != nil {
			return domain.AppSettings{}, fmt.Errorf("decode settings: %w", err)
		}
	}
	s.settings = &settings
	return settings, nil
}

// SaveSettings replaces the configuration wholesale.
func (s *Store) SaveSettings(settings domain.AppSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveDoc(keySettings, settings); err != nil {
		return err
	}
	s.settings = &settings
	return nil
}

// SeedSettings writes the default configuration if none is stored.
func (s *Store) SeedSettings(settings domain.AppSettings) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted, err := s.seedDoc(keySettings, settings)
	if err != nil {
		return false, err
	}
	if inserted {
		copied := settings
		s.settings = &copied
	}
	return inserted, nil
}

// Users

func (s *Store) loadUsersLocked() error {
	if s.usersLoaded {
		return nil
	}
	raw, found, err := s.loadDoc(keyUsers)
	if err != nil {
		return err
	}
	s.users = nil
	if found {
		if err := json.Unmarshal(raw, &s.users); err != nil {
			return fmt.Errorf("decode users: %w", err)
		}
	}
	s.usersLoaded = true
	return nil
}

// FindUser looks up a user by username.
func (s *Store) FindUser(username string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadUsersLocked(); err != nil {
		return domain.User{}, err
	}
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, ErrNotFound
}

// AddUser appends a new user; the username must be unused.
func (s *Store) AddUser(u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadUsersLocked(); err != nil {
		return err
	}
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return ErrUsernameTaken
		}
	}
	next := append(append([]domain.User{}, s.users...), u)
	if err := s.saveDoc(keyUsers, next); err != nil {
		return err
	}
	s.users = next
	return nil
}

// SetUserPassword replaces the stored hash for the given user.
func (s *Store) SetUserPassword(username, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadUsersLocked(); err != nil {
		return err
	}
	next := make([]domain.User, len(s.users))
	copy(next, s.users)
	for i := range next {
		if next[i].Username == username {
			next[i].PasswordHash = passwordHash
			if err := s.saveDoc(keyUsers, next); err != nil {
				return err
			}
			s.users = next
			return nil
		}
	}
	return ErrNotFound
}
