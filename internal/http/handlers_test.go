package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/gateway"
	"github.com/fjod/go_storefront/internal/webhook"
	"github.com/fjod/go_storefront/pkg/logger"
)

// gatewayMock is an in-memory backend cart API.
type gatewayMock struct {
	mu    sync.Mutex
	carts map[string]*domain.Cart
	seq   int
	err   error
	// createDelay holds CreateCart back, like a slow backend.
	createDelay time.Duration
}

func newGatewayMock() *gatewayMock {
	return &gatewayMock{carts: make(map[string]*domain.Cart)}
}

func (g *gatewayMock) CreateCart(ctx context.Context) (*domain.Cart, error) {
	if g.createDelay > 0 {
		select {
		case <-time.After(g.createDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.seq++
	c := domain.EmptyCart()
	c.ID = fmt.Sprintf("cart-%d", g.seq)
	c.CheckoutURL = "https://shop.example/checkouts/" + c.ID
	g.carts[c.ID] = c
	return c.Clone(), nil
}

func (g *gatewayMock) AddLines(_ context.Context, cartID string, lines []gateway.LineInput) (*domain.Cart, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	c, ok := g.carts[cartID]
	if !ok {
		return nil, gateway.ErrCartNotFound
	}
	for _, l := range lines {
		if i, ok := c.LineByMerchandise(l.MerchandiseID); ok {
			c.Lines[i].Quantity += domain.Quantity(l.Quantity)
			c.Lines[i].Cost = domain.MustMoney("5", "USD").MulQuantity(c.Lines[i].Quantity)
			continue
		}
		q := domain.Quantity(l.Quantity)
		c.Lines = append(c.Lines, domain.CartLine{
			ID:          "line-" + l.MerchandiseID,
			Quantity:    q,
			Merchandise: domain.Merchandise{VariantID: l.MerchandiseID},
			Cost:        domain.MustMoney("5", "USD").MulQuantity(q),
		})
	}
	c.RecomputeTotals()
	return c.Clone(), nil
}

func (g *gatewayMock) UpdateLines(_ context.Context, cartID string, lines []gateway.LineUpdate) (*domain.Cart, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	c, ok := g.carts[cartID]
	if !ok {
		return nil, gateway.ErrCartNotFound
	}
	for _, l := range lines {
		if i, ok := c.LineByID(l.ID); ok {
			c.Lines[i].Quantity = domain.Quantity(l.Quantity)
			c.Lines[i].Cost = domain.MustMoney("5", "USD").MulQuantity(c.Lines[i].Quantity)
		}
	}
	c.RecomputeTotals()
	return c.Clone(), nil
}

func (g *gatewayMock) RemoveLines(_ context.Context, cartID string, lineIDs []string) (*domain.Cart, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	c, ok := g.carts[cartID]
	if !ok {
		return nil, gateway.ErrCartNotFound
	}
	for _, id := range lineIDs {
		if i, ok := c.LineByID(id); ok {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
		}
	}
	c.RecomputeTotals()
	return c.Clone(), nil
}

func (g *gatewayMock) GetCart(_ context.Context, cartID string) (*domain.Cart, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	c, ok := g.carts[cartID]
	if !ok {
		return nil, nil
	}
	return c.Clone(), nil
}

func (g *gatewayMock) setErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

// catalogMock serves fixed catalog data and records the last queries.
type catalogMock struct {
	mu          sync.Mutex
	products    map[string]*domain.Product
	pages       map[string]*domain.Page
	err         error
	lastQuery   gateway.ProductQuery
	lastArticle gateway.ArticleQuery
	lastTag     string
	lastRecID   string
}

func newCatalogMock() *catalogMock {
	return &catalogMock{
		products: map[string]*domain.Product{
			"tee": {
				ID:     "gid://shopify/Product/1",
				Handle: "tee",
				Title:  "Tee",
				Variants: []domain.ProductVariant{
					{ID: "v1", Title: "S", Price: domain.MustMoney("5", "USD")},
				},
			},
		},
		pages: map[string]*domain.Page{},
	}
}

func (m *catalogMock) GetProduct(_ context.Context, handle string) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.products[handle], nil
}

func (m *catalogMock) GetProducts(_ context.Context, q gateway.ProductQuery) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = q
	if m.err != nil {
		return nil, m.err
	}
	return []domain.Product{*m.products["tee"]}, nil
}

func (m *catalogMock) GetProductRecommendations(_ context.Context, productID string) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRecID = productID
	return nil, m.err
}

func (m *catalogMock) GetCollection(_ context.Context, handle string) (*domain.Collection, error) {
	if handle == "shoes" {
		return &domain.Collection{Handle: "shoes", Title: "Shoes"}, nil
	}
	return nil, m.err
}

func (m *catalogMock) GetCollections(context.Context) ([]domain.Collection, error) {
	return []domain.Collection{{Title: "All", Path: "/search"}, {Handle: "shoes", Title: "Shoes"}}, m.err
}

func (m *catalogMock) GetCollectionProducts(_ context.Context, _ string, q gateway.ProductQuery) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = q
	return nil, m.err
}

func (m *catalogMock) GetMenu(context.Context, string) ([]domain.Menu, error) {
	return nil, m.err
}

func (m *catalogMock) GetPage(_ context.Context, handle string) (*domain.Page, error) {
	return m.pages[handle], m.err
}

func (m *catalogMock) GetPages(context.Context) ([]domain.Page, error) {
	return nil, m.err
}

func (m *catalogMock) GetBlogs(context.Context, int) ([]domain.Blog, error) {
	return nil, m.err
}

func (m *catalogMock) GetBlog(context.Context, string) (*domain.Blog, error) {
	return nil, m.err
}

func (m *catalogMock) GetArticle(context.Context, string, string) (*domain.Article, error) {
	return nil, m.err
}

func (m *catalogMock) GetBlogArticles(_ context.Context, q gateway.ArticleQuery) (*domain.ArticlePage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastArticle = q
	return &domain.ArticlePage{Articles: []domain.Article{}}, m.err
}

func (m *catalogMock) GetArticlesByTag(_ context.Context, _ string, tag string, _ int) ([]domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTag = tag
	return nil, m.err
}

func (m *catalogMock) FindVariant(ctx context.Context, handle, variantID string) (domain.ProductVariant, *domain.Product, error) {
	p, err := m.GetProduct(ctx, handle)
	if err != nil {
		return domain.ProductVariant{}, nil, err
	}
	if p == nil {
		return domain.ProductVariant{}, nil, catalog.ErrProductNotFound
	}
	v, ok := p.Variant(variantID)
	if !ok {
		return domain.ProductVariant{}, p, catalog.ErrVariantNotFound
	}
	return v, p, nil
}

type failingTagCache struct{}

func (failingTagCache) Invalidate(context.Context, string) (int, error) {
	return 0, fmt.Errorf("redis down")
}

type testServer struct {
	router  http.Handler
	gateway *gatewayMock
	catalog *catalogMock
}

func setupServer(tags webhook.TagInvalidator) *testServer {
	gw := newGatewayMock()
	cm := newCatalogMock()
	inv := webhook.NewInvalidator("s3cret", tags, logger.Discard())
	router := NewRouter(Handlers{
		Cart:       NewCartHandler(gw, cm, logger.Discard(), 5*time.Second, true),
		Catalog:    NewCatalogHandler(cm, 5*time.Second),
		Revalidate: NewRevalidateHandler(inv, 5*time.Second),
	}, 10*time.Second)
	return &testServer{router: router, gateway: gw, catalog: cm}
}
