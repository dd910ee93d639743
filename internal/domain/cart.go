package domain

// CartLine is a snapshot of a product taken when it was added to the cart,
// plus the quantity. Later catalog changes do not alter it.
type CartLine struct {
	Product
	Quantity int `json:"quantity"`
}

// Subtotal returns price times quantity.
func (l CartLine) Subtotal() int64 {
	return l.Price * int64(l.Quantity)
}

// Cart is an ordered list of lines with at most one line per product ID.
type Cart struct {
	Lines []CartLine `json:"lines"`
}

// Total is the sum of price*quantity over all lines, computed on demand.
func (c Cart) Total() int64 {
	var total int64
	for _, l := range c.Lines {
		total += l.Subtotal()
	}
	return total
}

// ItemCount is the sum of quantities, not the number of lines.
func (c Cart) ItemCount() int {
	var count int
	for _, l := range c.Lines {
		count += l.Quantity
	}
	return count
}

// IndexOf returns the index of the line for productID, or -1.
func (c Cart) IndexOf(productID string) int {
	for i := range c.Lines {
		if c.Lines[i].ID == productID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so snapshots handed to observers cannot be
// mutated through shared slices.
func (c Cart) Clone() Cart {
	if c.Lines == nil {
		return Cart{Lines: []CartLine{}}
	}
	lines := make([]CartLine, len(c.Lines))
	for i, l := range c.Lines {
		if l.Images != nil {
			l.Images = append([]string(nil), l.Images...)
		}
		lines[i] = l
	}
	return Cart{Lines: lines}
}
