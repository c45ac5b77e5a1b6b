package cart

import (
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/google/uuid"
)

// Mutation is one of AddLine, UpdateQuantity or RemoveLine.
type Mutation interface {
	mutation()
}

// LineRef selects a line by backend line id (or placeholder id), falling back
// to the merchandise variant id.
type LineRef struct {
	LineID        string
	MerchandiseID string
}

type AddLine struct {
	Merchandise domain.Merchandise
	Quantity    domain.Quantity
	UnitPrice   domain.Money
}

type UpdateQuantity struct {
	Ref   LineRef
	Delta int
}

type RemoveLine struct {
	Ref LineRef
}

func (AddLine) mutation()        {}
func (UpdateQuantity) mutation() {}
func (RemoveLine) mutation()     {}

// newPlaceholderID is swapped in tests.
var newPlaceholderID = func() string { return "pending-" + uuid.NewString() }

// Reduce applies m to current and returns the next snapshot. It never fails and
// never edits current: anything it cannot apply returns current unchanged.
func Reduce(current *domain.Cart, m Mutation) *domain.Cart {
	switch m := m.(type) {
	case AddLine:
		return reduceAdd(current, m)
	case UpdateQuantity:
		return reduceUpdate(current, m)
	case RemoveLine:
		return reduceRemove(current, m.Ref)
	default:
		return current
	}
}

// Replay folds mutations over start in order.
func Replay(start *domain.Cart, mutations ...Mutation) *domain.Cart {
	c := start
	for _, m := range mutations {
		c = Reduce(c, m)
	}
	return c
}

func reduceAdd(current *domain.Cart, m AddLine) *domain.Cart {
	if !m.Quantity.Positive() || m.Merchandise.VariantID == "" {
		return current
	}

	var next *domain.Cart
	if current == nil {
		next = domain.EmptyCart()
	} else {
		next = current.Clone()
	}

	if i, ok := next.LineByMerchandise(m.Merchandise.VariantID); ok {
		line := &next.Lines[i]
		unit := m.UnitPrice
		if unit.CurrencyCode == "" {
			unit = line.UnitPrice()
		}
		line.Quantity += m.Quantity
		line.Cost = unit.MulQuantity(line.Quantity)
	} else {
		next.Lines = append(next.Lines, domain.CartLine{
			PlaceholderID: newPlaceholderID(),
			Quantity:      m.Quantity,
			Merchandise:   m.Merchandise,
			Cost:          m.UnitPrice.MulQuantity(m.Quantity),
		})
	}

	next.RecomputeTotals()
	return next
}

func reduceUpdate(current *domain.Cart, m UpdateQuantity) *domain.Cart {
	i, ok := findLine(current, m.Ref)
	if !ok {
		return current
	}
	if m.Delta == 0 {
		return current
	}

	qty := current.Lines[i].Quantity.Add(m.Delta)
	if !qty.Positive() {
		return reduceRemove(current, m.Ref)
	}

	next := current.Clone()
	line := &next.Lines[i]
	unit := line.UnitPrice()
	line.Quantity = qty
	line.Cost = unit.MulQuantity(qty)
	next.RecomputeTotals()
	return next
}

func reduceRemove(current *domain.Cart, ref LineRef) *domain.Cart {
	i, ok := findLine(current, ref)
	if !ok {
		return current
	}

	next := current.Clone()
	next.Lines = append(next.Lines[:i], next.Lines[i+1:]...)
	next.RecomputeTotals()
	return next
}

func findLine(c *domain.Cart, ref LineRef) (int, bool) {
	if i, ok := c.LineByID(ref.LineID); ok {
		return i, true
	}
	return c.LineByMerchandise(ref.MerchandiseID)
}
