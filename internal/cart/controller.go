package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/gateway"
)

var (
	ErrNoCart          = errors.New("no active cart")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

const DefaultRemoteTimeout = 30 * time.Second

// Gateway is the remote cart API the controller reconciles against.
type Gateway interface {
	CreateCart(ctx context.Context) (*domain.Cart, error)
	AddLines(ctx context.Context, cartID string, lines []gateway.LineInput) (*domain.Cart, error)
	UpdateLines(ctx context.Context, cartID string, lines []gateway.LineUpdate) (*domain.Cart, error)
	RemoveLines(ctx context.Context, cartID string, lineIDs []string) (*domain.Cart, error)
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
}

// CartIDStore persists the session's remote cart id (the cart cookie).
type CartIDStore interface {
	CartID() string
	SetCartID(id string)
	ClearCartID()
}

type MemoryIDStore struct {
	mu sync.Mutex
	id string
}

func NewMemoryIDStore(id string) *MemoryIDStore {
	return &MemoryIDStore{id: id}
}

func (s *MemoryIDStore) CartID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *MemoryIDStore) SetCartID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
}

func (s *MemoryIDStore) ClearCartID() {
	s.SetCartID("")
}

type Option func(*Controller)

// WithRollbackOnError restores the last cart confirmed by the backend when a
// mutation fails and no other mutation is still in flight.
func WithRollbackOnError() Option {
	return func(c *Controller) { c.rollbackOnError = true }
}

// WithRemoteTimeout bounds each background gateway call.
func WithRemoteTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// Controller owns the visible cart of one session. Mutations update the
// snapshot immediately and reconcile with the backend in the background; the
// backend cart that lands last replaces the snapshot wholesale.
type Controller struct {
	gw     Gateway
	ids    CartIDStore
	logger *slog.Logger

	timeout         time.Duration
	rollbackOnError bool

	mu            sync.Mutex
	snapshot      *domain.Cart
	authoritative *domain.Cart
	inFlight      int
	version       uint64
	listeners     map[int]func(*domain.Cart)
	nextListener  int

	notifyMu  sync.Mutex
	delivered uint64

	// createMu keeps concurrent first adds from creating two carts.
	createMu sync.Mutex
	// firstAdd is closed once the add that creates the backend cart has
	// landed. Guarded by mu; nil when no such add is pending.
	firstAdd chan struct{}
	wg       sync.WaitGroup
}

func NewController(gw Gateway, ids CartIDStore, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		gw:        gw,
		ids:       ids,
		logger:    logger,
		timeout:   DefaultRemoteTimeout,
		listeners: make(map[int]func(*domain.Cart)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current cart, nil when the session has none. The
// returned cart is shared and must not be modified.
func (c *Controller) Snapshot() *domain.Cart {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Subscribe registers fn for every snapshot replacement.
func (c *Controller) Subscribe(fn func(*domain.Cart)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Load reads the stored cart from the backend. An id whose cart no longer
// exists is dropped.
func (c *Controller) Load(ctx context.Context) error {
	id := c.ids.CartID()
	if id == "" {
		return nil
	}
	cart, err := c.gw.GetCart(ctx, id)
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	if cart == nil {
		c.logger.InfoContext(ctx, "stored cart no longer exists", slog.String("cart_id", id))
		c.ids.ClearCartID()
	}

	c.mu.Lock()
	c.authoritative = cart
	c.replaceLocked(cart)
	c.mu.Unlock()
	c.publish()
	return nil
}

// CreateCart allocates a fresh backend cart and makes it the session's cart.
func (c *Controller) CreateCart(ctx context.Context) (*domain.Cart, error) {
	c.createMu.Lock()
	defer c.createMu.Unlock()

	cart, err := c.gw.CreateCart(ctx)
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	c.ids.SetCartID(cart.ID)

	c.mu.Lock()
	c.authoritative = cart
	c.replaceLocked(cart)
	c.mu.Unlock()
	c.publish()
	return cart, nil
}

// CheckoutURL returns the backend checkout address of the session's cart.
func (c *Controller) CheckoutURL(ctx context.Context) (string, error) {
	id := c.ids.CartID()
	if id == "" {
		return "", ErrNoCart
	}
	cart, err := c.gw.GetCart(ctx, id)
	if err != nil {
		return "", fmt.Errorf("checkout: %w", err)
	}
	if cart == nil {
		c.ids.ClearCartID()
		return "", ErrNoCart
	}
	return cart.CheckoutURL, nil
}

// Clear forgets the session's cart, e.g. after checkout completes.
func (c *Controller) Clear() {
	c.ids.ClearCartID()
	c.mu.Lock()
	c.authoritative = nil
	c.replaceLocked(nil)
	c.mu.Unlock()
	c.publish()
}

// AddItem adds quantity units of variant, creating the backend cart on first use.
func (c *Controller) AddItem(ctx context.Context, variant domain.ProductVariant, product *domain.Product, quantity int) *Op {
	if quantity <= 0 || variant.ID == "" {
		return failedOp(ErrInvalidQuantity)
	}

	m := AddLine{
		Merchandise: domain.MerchandiseFromVariant(variant, product),
		Quantity:    domain.Quantity(quantity),
		UnitPrice:   variant.Price,
	}
	c.apply(m)
	landed := c.claimFirstAdd()

	return c.start(ctx, "add", func(ctx context.Context) (*domain.Cart, error) {
		lines := []gateway.LineInput{{MerchandiseID: variant.ID, Quantity: quantity}}
		return c.remoteAdd(ctx, lines)
	}, landed)
}

// UpdateItemQuantity changes the quantity of the line for merchandiseID by
// delta. A resulting quantity of zero or less removes the line.
func (c *Controller) UpdateItemQuantity(ctx context.Context, merchandiseID string, delta int) *Op {
	ref := LineRef{MerchandiseID: merchandiseID}

	c.mu.Lock()
	target := delta
	if c.snapshot != nil {
		if i, ok := c.snapshot.LineByMerchandise(merchandiseID); ok {
			target = int(c.snapshot.Lines[i].Quantity) + delta
		}
	}
	c.inFlight++
	changed := c.replaceLocked(Reduce(c.snapshot, UpdateQuantity{Ref: ref, Delta: delta}))
	c.mu.Unlock()
	if changed {
		c.publish()
	}

	return c.start(ctx, "update", func(ctx context.Context) (*domain.Cart, error) {
		return c.remoteSetQuantity(ctx, merchandiseID, target)
	}, nil)
}

// RemoveItem removes the line for merchandiseID.
func (c *Controller) RemoveItem(ctx context.Context, merchandiseID string) *Op {
	c.apply(RemoveLine{Ref: LineRef{MerchandiseID: merchandiseID}})

	return c.start(ctx, "remove", func(ctx context.Context) (*domain.Cart, error) {
		return c.remoteSetQuantity(ctx, merchandiseID, 0)
	}, nil)
}

// Wait blocks until every started mutation has landed.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) apply(m Mutation) {
	c.mu.Lock()
	c.inFlight++
	changed := c.replaceLocked(Reduce(c.snapshot, m))
	c.mu.Unlock()
	if changed {
		c.publish()
	}
}

// replaceLocked swaps the snapshot and reports whether it changed.
func (c *Controller) replaceLocked(next *domain.Cart) bool {
	if next == c.snapshot {
		return false
	}
	c.snapshot = next
	c.version++
	return true
}

// publish hands the newest snapshot to listeners. Versions are delivered in
// increasing order; a stale publish is dropped.
func (c *Controller) publish() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	version, snap := c.version, c.snapshot
	listeners := make([]func(*domain.Cart), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	if version <= c.delivered {
		return
	}
	c.delivered = version
	for _, fn := range listeners {
		fn(snap)
	}
}

// start runs remote in the background; the caller has already counted the
// mutation in inFlight.
func (c *Controller) start(ctx context.Context, name string, remote func(ctx context.Context) (*domain.Cart, error), onLanded func()) *Op {
	op := newOp()
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		cart, err := remote(bg)
		c.land(bg, name, cart, err)
		op.finish(cart, err)
		if onLanded != nil {
			onLanded()
		}
	}()
	return op
}

func (c *Controller) land(ctx context.Context, name string, cart *domain.Cart, err error) {
	c.mu.Lock()
	c.inFlight--
	changed := false
	if err == nil {
		c.authoritative = cart
		changed = c.replaceLocked(cart)
	} else if c.rollbackOnError && c.inFlight == 0 {
		changed = c.replaceLocked(c.authoritative)
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.WarnContext(ctx, "cart mutation failed",
			slog.String("op", name),
			slog.Bool("retryable", gateway.IsRetryable(err)),
			slog.Any("error", err))
	} else {
		c.logger.DebugContext(ctx, "cart reconciled", slog.String("op", name))
	}
	if changed {
		c.publish()
	}
}

// ensureCart returns the stored cart id, creating a backend cart if there is none.
func (c *Controller) ensureCart(ctx context.Context) (string, error) {
	c.createMu.Lock()
	defer c.createMu.Unlock()

	if id := c.ids.CartID(); id != "" {
		return id, nil
	}
	cart, err := c.gw.CreateCart(ctx)
	if err != nil {
		return "", fmt.Errorf("create cart: %w", err)
	}
	c.ids.SetCartID(cart.ID)
	return cart.ID, nil
}

func (c *Controller) remoteAdd(ctx context.Context, lines []gateway.LineInput) (*domain.Cart, error) {
	id, err := c.ensureCart(ctx)
	if err != nil {
		return nil, err
	}
	cart, err := c.gw.AddLines(ctx, id, lines)
	if !errors.Is(err, gateway.ErrCartNotFound) {
		return cart, err
	}

	c.logger.InfoContext(ctx, "cart expired, starting a new one", slog.String("cart_id", id))
	c.dropCartID(id)
	if id, err = c.ensureCart(ctx); err != nil {
		return nil, err
	}
	return c.gw.AddLines(ctx, id, lines)
}

// remoteSetQuantity drives the backend line for merchandiseID to quantity,
// adding or removing the line as needed. A missing cart reconciles to empty.
func (c *Controller) remoteSetQuantity(ctx context.Context, merchandiseID string, quantity int) (*domain.Cart, error) {
	id, err := c.currentCartID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return domain.EmptyCart(), nil
	}

	current, err := c.gw.GetCart(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return c.staleCart(ctx, id), nil
	}

	i, found := current.LineByMerchandise(merchandiseID)
	var cart *domain.Cart
	switch {
	case !found && quantity <= 0:
		return current, nil
	case !found:
		cart, err = c.gw.AddLines(ctx, id, []gateway.LineInput{{MerchandiseID: merchandiseID, Quantity: quantity}})
	case quantity <= 0:
		cart, err = c.gw.RemoveLines(ctx, id, []string{current.Lines[i].ID})
	default:
		cart, err = c.gw.UpdateLines(ctx, id, []gateway.LineUpdate{{
			ID:            current.Lines[i].ID,
			MerchandiseID: merchandiseID,
			Quantity:      quantity,
		}})
	}
	if errors.Is(err, gateway.ErrCartNotFound) {
		return c.staleCart(ctx, id), nil
	}
	return cart, err
}

func (c *Controller) staleCart(ctx context.Context, id string) *domain.Cart {
	c.logger.InfoContext(ctx, "stored cart no longer exists", slog.String("cart_id", id))
	c.dropCartID(id)
	return domain.EmptyCart()
}

// claimFirstAdd marks an add that will create the backend cart. The returned
// func releases mutations waiting in currentCartID; it is nil when the session
// already has a cart or another add is creating one.
func (c *Controller) claimFirstAdd() func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.firstAdd != nil || c.ids.CartID() != "" {
		return nil
	}
	ch := make(chan struct{})
	c.firstAdd = ch
	return func() {
		c.mu.Lock()
		c.firstAdd = nil
		c.mu.Unlock()
		close(ch)
	}
}

// currentCartID waits for a pending cart-creating add to land before reading
// the stored id, so later mutations apply to the cart it created.
func (c *Controller) currentCartID(ctx context.Context) (string, error) {
	c.mu.Lock()
	pending := c.firstAdd
	c.mu.Unlock()
	if pending != nil {
		select {
		case <-pending:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	c.createMu.Lock()
	defer c.createMu.Unlock()
	return c.ids.CartID(), nil
}

// dropCartID clears the stored id unless another mutation already replaced it.
func (c *Controller) dropCartID(id string) {
	c.createMu.Lock()
	defer c.createMu.Unlock()
	if c.ids.CartID() == id {
		c.ids.ClearCartID()
	}
}
