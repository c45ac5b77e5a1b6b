package domain

import (
	"net/url"
	"sort"
	"strings"
)

// DefaultOption is the variant title the backend uses for products without options.
const DefaultOption = "Default Title"

type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Image struct {
	URL     string `json:"url"`
	AltText string `json:"altText"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// Merchandise identifies the purchasable variant behind a cart line.
// It is never modified after being attached to a line.
type Merchandise struct {
	VariantID       string           `json:"id"`
	Title           string           `json:"title"`
	SelectedOptions []SelectedOption `json:"selectedOptions"`
	ProductID       string           `json:"productId"`
	ProductHandle   string           `json:"productHandle"`
	ProductTitle    string           `json:"productTitle"`
	FeaturedImage   Image            `json:"featuredImage"`
}

// OptionParams returns the non-default selected options keyed by lower-cased option name.
func (m Merchandise) OptionParams() url.Values {
	params := url.Values{}
	for _, o := range m.SelectedOptions {
		if o.Value != DefaultOption {
			params.Set(strings.ToLower(o.Name), o.Value)
		}
	}
	return params
}

// URL is the product page link for this variant.
func (m Merchandise) URL() string {
	path := "/product/" + m.ProductHandle
	if q := m.OptionParams().Encode(); q != "" {
		return path + "?" + q
	}
	return path
}

type CartLine struct {
	// ID is empty until the backend has confirmed the line.
	ID            string      `json:"id,omitempty"`
	PlaceholderID string      `json:"placeholderId,omitempty"`
	Quantity      Quantity    `json:"quantity"`
	Merchandise   Merchandise `json:"merchandise"`
	Cost          Money       `json:"cost"`
}

func (l CartLine) Confirmed() bool {
	return l.ID != ""
}

func (l CartLine) UnitPrice() Money {
	return l.Cost.DivQuantity(l.Quantity)
}

type CartCost struct {
	Subtotal Money `json:"subtotalAmount"`
	Tax      Money `json:"totalTaxAmount"`
	Total    Money `json:"totalAmount"`
}

// Cart is one immutable snapshot of a cart. Mutations produce a new Cart via
// Clone; a published snapshot is never edited in place.
type Cart struct {
	ID            string     `json:"id,omitempty"`
	CheckoutURL   string     `json:"checkoutUrl"`
	Lines         []CartLine `json:"lines"`
	TotalQuantity Quantity   `json:"totalQuantity"`
	Cost          CartCost   `json:"cost"`
}

func EmptyCart() *Cart {
	zero := ZeroMoney(DefaultCurrency)
	return &Cart{
		Lines: []CartLine{},
		Cost:  CartCost{Subtotal: zero, Tax: zero, Total: zero},
	}
}

func (c *Cart) Empty() bool {
	return c == nil || len(c.Lines) == 0
}

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Lines = make([]CartLine, len(c.Lines))
	for i, l := range c.Lines {
		l.Merchandise.SelectedOptions = append([]SelectedOption(nil), l.Merchandise.SelectedOptions...)
		out.Lines[i] = l
	}
	return &out
}

// RecomputeTotals rebuilds totalQuantity and the cost block from the lines.
// Tax is carried over as-is; the backend is the only authority for it.
func (c *Cart) RecomputeTotals() {
	currency := DefaultCurrency
	if len(c.Lines) > 0 && c.Lines[0].Cost.CurrencyCode != "" {
		currency = c.Lines[0].Cost.CurrencyCode
	}

	var qty Quantity
	subtotal := ZeroMoney(currency)
	for _, l := range c.Lines {
		qty += l.Quantity
		if sum, err := subtotal.Add(l.Cost); err == nil {
			subtotal = sum
		}
	}

	tax := c.Cost.Tax
	if tax.CurrencyCode == "" || (tax.IsZero() && tax.CurrencyCode != currency) {
		tax = ZeroMoney(currency)
	}
	total, err := subtotal.Add(tax)
	if err != nil {
		total = subtotal
	}

	c.TotalQuantity = qty
	c.Cost = CartCost{Subtotal: subtotal, Tax: tax, Total: total}
}

func (c *Cart) LineByID(id string) (int, bool) {
	if c == nil || id == "" {
		return -1, false
	}
	for i, l := range c.Lines {
		if l.ID == id || l.PlaceholderID == id {
			return i, true
		}
	}
	return -1, false
}

func (c *Cart) LineByMerchandise(variantID string) (int, bool) {
	if c == nil || variantID == "" {
		return -1, false
	}
	for i, l := range c.Lines {
		if l.Merchandise.VariantID == variantID {
			return i, true
		}
	}
	return -1, false
}

// SortedLines returns the lines ordered by product title for rendering.
func (c *Cart) SortedLines() []CartLine {
	if c == nil {
		return nil
	}
	lines := append([]CartLine(nil), c.Lines...)
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Merchandise.ProductTitle < lines[j].Merchandise.ProductTitle
	})
	return lines
}
