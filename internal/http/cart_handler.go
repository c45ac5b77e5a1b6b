package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

// VariantFinder resolves the variant a shopper picked on a product page.
type VariantFinder interface {
	FindVariant(ctx context.Context, handle, variantID string) (domain.ProductVariant, *domain.Product, error)
}

type CartHandler struct {
	gateway      cart.Gateway
	variants     VariantFinder
	logger       *slog.Logger
	timeout      time.Duration
	cookieSecure bool
	opts         []cart.Option
}

func NewCartHandler(gw cart.Gateway, variants VariantFinder, logger *slog.Logger, timeout time.Duration, cookieSecure bool, opts ...cart.Option) *CartHandler {
	return &CartHandler{
		gateway:      gw,
		variants:     variants,
		logger:       logger,
		timeout:      timeout,
		cookieSecure: cookieSecure,
		opts:         opts,
	}
}

type AddItemRequestDTO struct {
	ProductHandle string `json:"product_handle"`
	VariantID     string `json:"variant_id"`
	Quantity      int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Delta int `json:"delta"`
}

// session builds a controller for the shopper identified by the cart cookie.
func (h *CartHandler) session(r *http.Request) (*cart.Controller, *cookieStore) {
	store := newCookieStore(r, h.cookieSecure)
	opts := append([]cart.Option{cart.WithRemoteTimeout(h.timeout)}, h.opts...)
	logger := h.logger.With(slog.String("request_id", getRequestID(r.Context())))
	return cart.NewController(h.gateway, store, logger, opts...), store
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ctrl, store := h.session(r)
	err := ctrl.Load(ctx)
	store.flush(w)
	if err != nil {
		handleGatewayError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartOrEmpty(ctrl.Snapshot()))
}

func (h *CartHandler) CreateCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ctrl, store := h.session(r)
	c, err := ctrl.CreateCart(ctx)
	store.flush(w)
	if err != nil {
		handleGatewayError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, c)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	// Parse request body
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	// Validate request
	if req.ProductHandle == "" || req.VariantID == "" {
		respondError(w, http.StatusBadRequest, "invalid_variant", "product_handle and variant_id are required")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	variant, product, err := h.variants.FindVariant(ctx, req.ProductHandle, req.VariantID)
	if err != nil {
		handleGatewayError(w, err)
		return
	}

	ctrl, store := h.session(r)
	op := ctrl.AddItem(ctx, variant, product, req.Quantity)
	h.respondOp(w, r, store, op, http.StatusCreated)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	merchandiseID, ok := merchandiseParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Delta == 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "delta must not be zero")
		return
	}

	ctrl, store := h.session(r)
	if err := ctrl.Load(ctx); err != nil {
		store.flush(w)
		handleGatewayError(w, err)
		return
	}
	op := ctrl.UpdateItemQuantity(ctx, merchandiseID, req.Delta)
	h.respondOp(w, r, store, op, http.StatusOK)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	merchandiseID, ok := merchandiseParam(w, r)
	if !ok {
		return
	}

	ctrl, store := h.session(r)
	op := ctrl.RemoveItem(ctx, merchandiseID)
	h.respondOp(w, r, store, op, http.StatusOK)
}

// Checkout redirects the shopper to the backend checkout page.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ctrl, store := h.session(r)
	checkoutURL, err := ctrl.CheckoutURL(ctx)
	store.flush(w)
	if err != nil {
		handleGatewayError(w, err)
		return
	}

	http.Redirect(w, r, checkoutURL, http.StatusSeeOther)
}

func (h *CartHandler) respondOp(w http.ResponseWriter, r *http.Request, store *cookieStore, op *cart.Op, status int) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	err := op.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		// A cart created by the op must still reach the cookie.
		<-op.Done()
		err = op.Err()
	}
	store.flush(w)
	if err != nil {
		handleGatewayError(w, err)
		return
	}

	respondJSON(w, status, cartOrEmpty(op.Cart()))
}

func merchandiseParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := url.PathUnescape(chi.URLParam(r, "merchandise_id"))
	if err != nil || id == "" {
		respondError(w, http.StatusBadRequest, "invalid_merchandise_id", "merchandise_id is required")
		return "", false
	}
	return id, true
}

func cartOrEmpty(c *domain.Cart) *domain.Cart {
	if c == nil {
		return domain.EmptyCart()
	}
	return c
}
