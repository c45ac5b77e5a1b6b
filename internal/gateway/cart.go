package gateway

import (
	"context"
	"fmt"

	"github.com/fjod/go_storefront/internal/domain"
)

type LineInput struct {
	MerchandiseID string `json:"merchandiseId"`
	Quantity      int    `json:"quantity"`
}

type LineUpdate struct {
	ID            string `json:"id"`
	MerchandiseID string `json:"merchandiseId"`
	Quantity      int    `json:"quantity"`
}

type connection[T any] struct {
	Edges []struct {
		Node T `json:"node"`
	} `json:"edges"`
}

func (c connection[T]) nodes() []T {
	out := make([]T, 0, len(c.Edges))
	for _, e := range c.Edges {
		out = append(out, e.Node)
	}
	return out
}

type wireCartLine struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
	Cost     struct {
		TotalAmount domain.Money `json:"totalAmount"`
	} `json:"cost"`
	Merchandise struct {
		ID              string                  `json:"id"`
		Title           string                  `json:"title"`
		SelectedOptions []domain.SelectedOption `json:"selectedOptions"`
		Product         struct {
			ID            string        `json:"id"`
			Handle        string        `json:"handle"`
			Title         string        `json:"title"`
			FeaturedImage *domain.Image `json:"featuredImage"`
		} `json:"product"`
	} `json:"merchandise"`
}

type wireCart struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkoutUrl"`
	Cost        struct {
		SubtotalAmount domain.Money  `json:"subtotalAmount"`
		TotalAmount    domain.Money  `json:"totalAmount"`
		TotalTaxAmount *domain.Money `json:"totalTaxAmount"`
	} `json:"cost"`
	Lines         connection[wireCartLine] `json:"lines"`
	TotalQuantity int                      `json:"totalQuantity"`
}

type cartPayload struct {
	Cart       *wireCart   `json:"cart"`
	UserErrors []UserError `json:"userErrors"`
}

func reshapeCart(w *wireCart) *domain.Cart {
	tax := domain.ZeroMoney(w.Cost.TotalAmount.CurrencyCode)
	if w.Cost.TotalTaxAmount != nil {
		tax = *w.Cost.TotalTaxAmount
	}

	cart := &domain.Cart{
		ID:            w.ID,
		CheckoutURL:   w.CheckoutURL,
		Lines:         make([]domain.CartLine, 0, len(w.Lines.Edges)),
		TotalQuantity: domain.Quantity(w.TotalQuantity),
		Cost: domain.CartCost{
			Subtotal: w.Cost.SubtotalAmount,
			Tax:      tax,
			Total:    w.Cost.TotalAmount,
		},
	}

	for _, l := range w.Lines.nodes() {
		m := domain.Merchandise{
			VariantID:       l.Merchandise.ID,
			Title:           l.Merchandise.Title,
			SelectedOptions: l.Merchandise.SelectedOptions,
			ProductID:       l.Merchandise.Product.ID,
			ProductHandle:   l.Merchandise.Product.Handle,
			ProductTitle:    l.Merchandise.Product.Title,
		}
		if img := l.Merchandise.Product.FeaturedImage; img != nil {
			m.FeaturedImage = *img
		}
		cart.Lines = append(cart.Lines, domain.CartLine{
			ID:          l.ID,
			Quantity:    domain.Quantity(l.Quantity),
			Merchandise: m,
			Cost:        l.Cost.TotalAmount,
		})
	}
	return cart
}

func mutationResult(op string, p cartPayload) (*domain.Cart, error) {
	if len(p.UserErrors) > 0 {
		if cartMissing(p.UserErrors) {
			return nil, fmt.Errorf("%s: %w", op, ErrCartNotFound)
		}
		return nil, &ValidationError{Op: op, Errors: p.UserErrors}
	}
	if p.Cart == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrCartNotFound)
	}
	return reshapeCart(p.Cart), nil
}

// CreateCart allocates a new, empty remote cart. The caller must persist the
// returned id before issuing any other cart operation.
func (c *Client) CreateCart(ctx context.Context) (*domain.Cart, error) {
	var res struct {
		CartCreate cartPayload `json:"cartCreate"`
	}
	if err := c.do(ctx, "createCart", createCartMutation, nil, &res); err != nil {
		return nil, err
	}
	return mutationResult("createCart", res.CartCreate)
}

func (c *Client) AddLines(ctx context.Context, cartID string, lines []LineInput) (*domain.Cart, error) {
	var res struct {
		CartLinesAdd cartPayload `json:"cartLinesAdd"`
	}
	vars := map[string]any{"cartId": cartID, "lines": lines}
	if err := c.do(ctx, "addToCart", addToCartMutation, vars, &res); err != nil {
		return nil, err
	}
	return mutationResult("addToCart", res.CartLinesAdd)
}

func (c *Client) UpdateLines(ctx context.Context, cartID string, lines []LineUpdate) (*domain.Cart, error) {
	var res struct {
		CartLinesUpdate cartPayload `json:"cartLinesUpdate"`
	}
	vars := map[string]any{"cartId": cartID, "lines": lines}
	if err := c.do(ctx, "editCartItems", editCartItemsMutation, vars, &res); err != nil {
		return nil, err
	}
	return mutationResult("editCartItems", res.CartLinesUpdate)
}

func (c *Client) RemoveLines(ctx context.Context, cartID string, lineIDs []string) (*domain.Cart, error) {
	var res struct {
		CartLinesRemove cartPayload `json:"cartLinesRemove"`
	}
	vars := map[string]any{"cartId": cartID, "lineIds": lineIDs}
	if err := c.do(ctx, "removeFromCart", removeFromCartMutation, vars, &res); err != nil {
		return nil, err
	}
	return mutationResult("removeFromCart", res.CartLinesRemove)
}

// GetCart returns (nil, nil) when the cart does not exist; carts become null
// once their checkout completes.
func (c *Client) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	if cartID == "" {
		return nil, nil
	}
	var res struct {
		Cart *wireCart `json:"cart"`
	}
	if err := c.do(ctx, "getCart", getCartQuery, map[string]any{"cartId": cartID}, &res); err != nil {
		return nil, err
	}
	if res.Cart == nil {
		return nil, nil
	}
	return reshapeCart(res.Cart), nil
}
