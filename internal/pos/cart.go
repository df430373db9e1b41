package pos

import (
	"gidipos/m/domain"
)

// Cart is the transient selection of drugs for one till session. Lines are
// drug snapshots; the cart never touches the inventory store itself.
type Cart struct {
	items []domain.CartItem
}

// Add puts one unit of the drug in the cart. An existing line grows by one,
// capped at the drug's available stock; at the cap the request is silently
// ignored. A drug with no stock is never inserted. Reports whether the cart
// changed.
func (c *Cart) Add(drug domain.Drug) bool {
	for i := range c.items {
		if c.items[i].ID == drug.ID {
			if c.items[i].CartQuantity >= drug.Quantity {
				return false
			}
			c.items[i].CartQuantity++
			return true
		}
	}
	if drug.Quantity < 1 {
		return false
	}
	c.items = append(c.items, domain.CartItem{Drug: drug, CartQuantity: 1})
	return true
}

// Remove deletes the line item unconditionally.
func (c *Cart) Remove(id string) {
	next := c.items[:0]
	for _, item := range c.items {
		if item.ID != id {
			next = append(next, item)
		}
	}
	c.items = next
}

// Adjust changes a line's quantity by delta. The result must stay within
// [1, stock at the time the line was added]; an out-of-range delta is
// rejected and the cart is left unchanged, not clamped. Reports whether the
// adjustment was applied.
func (c *Cart) Adjust(id string, delta int) bool {
	for i := range c.items {
		if c.items[i].ID == id {
			next := c.items[i].CartQuantity + delta
			if next < 1 || next > c.items[i].Quantity {
				return false
			}
			c.items[i].CartQuantity = next
			return true
		}
	}
	return false
}

// Items returns a copy of the cart lines in insertion order.
func (c *Cart) Items() []domain.CartItem {
	out := make([]domain.CartItem, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of line items.
func (c *Cart) Len() int {
	return len(c.items)
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.items = nil
}
