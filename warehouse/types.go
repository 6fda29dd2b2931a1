// Package warehouse holds the fulfillment-side model the examples map
// into: flattened shapes, some members reachable only through a
// getter/setter pair.
package warehouse

// Shipment is the flattened fulfillment view of a storefront order.
type Shipment struct {
	OrderRef     string
	CustomerName string
	Email        string
	Phone        string
	TotalDollars float64
	Parcels      int

	priority int
}

func (s *Shipment) Priority() int     { return s.priority }
func (s *Shipment) SetPriority(p int) { s.priority = p }

// Label is the subset of a shipment printed on the parcel.
type Label struct {
	OrderRef string
	Name     string
}
