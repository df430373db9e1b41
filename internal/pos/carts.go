package pos

import (
	"sync"

	"gidipos/m/domain"
)

// Carts holds one live cart per user. Carts are in-memory only and vanish
// on restart; only completed sales persist.
type Carts struct {
	mu     sync.Mutex
	byUser map[string]*Cart
}

// NewCarts constructs an empty registry.
func NewCarts() *Carts {
	return &Carts{byUser: make(map[string]*Cart)}
}

func (c *Carts) cartLocked(username string) *Cart {
	cart, ok := c.byUser[username]
	if !ok {
		cart = &Cart{}
		c.byUser[username] = cart
	}
	return cart
}

// Add adds one unit of the drug to the user's cart.
func (c *Carts) Add(username string, drug domain.Drug) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cartLocked(username).Add(drug)
}

// Remove deletes a line from the user's cart.
func (c *Carts) Remove(username, drugID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cartLocked(username).Remove(drugID)
}

// Adjust changes a line's quantity by delta within the allowed bounds.
func (c *Carts) Adjust(username, drugID string, delta int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cartLocked(username).Adjust(drugID, delta)
}

// Items returns a copy of the user's cart lines.
func (c *Carts) Items(username string) []domain.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cartLocked(username).Items()
}

// Clear empties the user's cart after a completed checkout.
func (c *Carts) Clear(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cartLocked(username).Clear()
}
