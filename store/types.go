// Package store holds the storefront-side model used across the mapping
// examples and tests: the "rich" source shapes with nested pointers,
// getter-backed members and a money value type.
package store

// Money is an integer-cent amount with conversion accessors, so mapping
// plans can pick them up as conversion methods.
type Money struct {
	Cents int64
}

func (m Money) Dollars() float64 { return float64(m.Cents) / 100 }

// Contact carries optional reachability details; Phone is deliberately a
// pointer so nil-handling paths stay covered.
type Contact struct {
	Email string
	Phone *string
}

// Customer is the storefront account shape.
type Customer struct {
	ID        int64
	FirstName string
	LastName  string
	Contact   *Contact
}

// Line is one purchased product inside an order.
type Line struct {
	SKU   string
	Qty   int
	Price Money
}

// Order is the storefront purchase record. The total is kept private and
// exposed through an accessor pair.
type Order struct {
	Ref      string
	Customer *Customer
	Lines    []Line

	total Money
}

func (o Order) Total() Money      { return o.total }
func (o *Order) SetTotal(m Money) { o.total = m }
func (o Order) LineCount() int    { return len(o.Lines) }
