package http

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/gateway"
	"github.com/go-chi/chi/v5"
)

// Catalog is the cached read side of the store.
type Catalog interface {
	GetProduct(ctx context.Context, handle string) (*domain.Product, error)
	GetProducts(ctx context.Context, q gateway.ProductQuery) ([]domain.Product, error)
	GetProductRecommendations(ctx context.Context, productID string) ([]domain.Product, error)
	GetCollection(ctx context.Context, handle string) (*domain.Collection, error)
	GetCollections(ctx context.Context) ([]domain.Collection, error)
	GetCollectionProducts(ctx context.Context, handle string, q gateway.ProductQuery) ([]domain.Product, error)
	GetMenu(ctx context.Context, handle string) ([]domain.Menu, error)
	GetPage(ctx context.Context, handle string) (*domain.Page, error)
	GetPages(ctx context.Context) ([]domain.Page, error)
	GetBlogs(ctx context.Context, articlesFirst int) ([]domain.Blog, error)
	GetBlog(ctx context.Context, handle string) (*domain.Blog, error)
	GetArticle(ctx context.Context, blogHandle, articleHandle string) (*domain.Article, error)
	GetBlogArticles(ctx context.Context, q gateway.ArticleQuery) (*domain.ArticlePage, error)
	GetArticlesByTag(ctx context.Context, blogHandle, tag string, first int) ([]domain.Article, error)
}

type CatalogHandler struct {
	catalog Catalog
	timeout time.Duration
}

func NewCatalogHandler(c Catalog, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{
		catalog: c,
		timeout: timeout,
	}
}

type ProductsResponse struct {
	Products []domain.Product `json:"products"`
}

type SearchResponse struct {
	Products []domain.Product     `json:"products"`
	Sort     catalog.SortFilter   `json:"sort"`
	Sorting  []catalog.SortFilter `json:"sorting"`
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "handle"))
	if err != nil {
		handleGatewayError(w, err)
		return
	}
	if p == nil {
		respondError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.GetProductRecommendations(ctx, pathParam(r, "handle"))
	if err != nil {
		handleGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, &ProductsResponse{Products: nonNil(products)})
}

func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sort := catalog.SortBySlug(r.URL.Query().Get("sort"))
	products, err := h.catalog.GetProducts(ctx, gateway.ProductQuery{
		Query:   r.URL.Query().Get("q"),
		SortKey: sort.SortKey,
		Reverse: sort.Reverse,
	})
	if err != nil {
		handleGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, &SearchResponse{Products: nonNil(products), Sort: sort, Sorting: catalog.Sorting})
}

func (h *CatalogHandler) GetCollections(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	collections, err := h.catalog.GetCollections(ctx)
	if err != nil {
		handleGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, collections)
}

func (h *CatalogHandler) GetCollection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c, err := h.catalog.GetCollection(ctx, chi.URLParam(r, "handle"))
	if err != nil {
		handleGatewayError(w, err)
		return
	}
	if c == nil {
		respondError(w, http.StatusNotFound, "not_found", "collection not found")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *CatalogHandler) GetCollectionProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sort := catalog.SortBySlug(r.URL.Query().Get("sort"))
	products, err := h.catalog.GetCollectionProducts(ctx, chi.URLParam(r, "handle"), gateway.ProductQuery{
		SortKey: sort.SortKey,
		Reverse: sort.Reverse,
	})
	if err != nil {
		handleGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, &ProductsResponse{Products: nonNil(products)})
}

func (h *CatalogHandler) GetMenu(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	menu, err := h.catalog.GetMenu(ctx, chi.URLParam(r, "handle"))
	if err != nil {
		handleGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(menu))
}

func (h *CatalogHandler) GetPages(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	pages, err := h.catalog.GetPages(ctx)
	if err != nil {
		handleGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(pages))
}

func (h *CatalogHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.catalog.GetPage(ctx, chi.URLParam(r, "handle"))
	if err != nil {
		handleGatewayError(w, err)
		return
	}
	if p == nil {
		respondError(w, http.StatusNotFound, "not_found", "page not found")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) GetBlogs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	blogs, err := h.catalog.GetBlogs(ctx, queryInt(r, "articles"))
	if err != nil {
		handleGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(blogs))
}

func (h *CatalogHandler) GetBlog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	b, err := h.catalog.GetBlog(ctx, chi.URLParam(r, "handle"))
	if err != nil {
		handleGatewayError(w, err)
		return
	}
	if b == nil {
		respondError(w, http.StatusNotFound, "not_found", "blog not found")
		return
	}
	respondJSON(w, http.StatusOK, b)
}

// GetBlogArticles pages through a blog's articles, or lists those carrying
// ?tag= when it is set.
func (h *CatalogHandler) GetBlogArticles(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	blog := chi.URLParam(r, "handle")
	q := r.URL.Query()
	if tag := q.Get("tag"); tag != "" {
		articles, err := h.catalog.GetArticlesByTag(ctx, blog, tag, queryInt(r, "first"))
		if err != nil {
			handleGatewayError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, &domain.ArticlePage{Articles: nonNil(articles)})
		return
	}

	page, err := h.catalog.GetBlogArticles(ctx, gateway.ArticleQuery{
		BlogHandle: blog,
		First:      queryInt(r, "first"),
		After:      q.Get("after"),
	})
	if err != nil {
		handleGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *CatalogHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	a, err := h.catalog.GetArticle(ctx, chi.URLParam(r, "handle"), chi.URLParam(r, "article"))
	if err != nil {
		handleGatewayError(w, err)
		return
	}
	if a == nil {
		respondError(w, http.StatusNotFound, "not_found", "article not found")
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func pathParam(r *http.Request, key string) string {
	v, err := url.PathUnescape(chi.URLParam(r, key))
	if err != nil {
		return chi.URLParam(r, key)
	}
	return v
}

// queryInt returns zero for a missing or malformed parameter.
func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
