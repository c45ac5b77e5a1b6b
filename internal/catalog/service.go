package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/cache"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/gateway"
)

// Cache tags. A webhook for a topic evicts every read carrying its tag.
const (
	TagCollections = "collections"
	TagProducts    = "products"
	TagBlogs       = "blogs"
	TagArticles    = "articles"
)

const DefaultTTL = 7 * 24 * time.Hour

// Backend is the slice of the storefront API the catalog reads from.
type Backend interface {
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

type Service struct {
	backend Backend
	reads   *cache.ReadThrough
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(backend Backend, reads *cache.ReadThrough, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		backend: backend,
		reads:   reads,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

func queryKey(op string, parts ...any) string {
	var b strings.Builder
	b.WriteString(op)
	for _, p := range parts {
		fmt.Fprintf(&b, ":%v", p)
	}
	return b.String()
}

func (s *Service) GetProduct(ctx context.Context, handle string) (*domain.Product, error) {
	return cache.Fetch(ctx, s.reads, queryKey("product", handle), []string{TagProducts}, s.ttl,
		func(ctx context.Context) (*domain.Product, error) {
			return s.backend.GetProduct(ctx, handle)
		})
}

func (s *Service) GetProducts(ctx context.Context, q gateway.ProductQuery) ([]domain.Product, error) {
	key := queryKey("products", q.Query, q.SortKey, q.Reverse)
	return cache.Fetch(ctx, s.reads, key, []string{TagProducts}, s.ttl,
		func(ctx context.Context) ([]domain.Product, error) {
			return s.backend.GetProducts(ctx, q)
		})
}

func (s *Service) GetProductRecommendations(ctx context.Context, productID string) ([]domain.Product, error) {
	return cache.Fetch(ctx, s.reads, queryKey("recommendations", productID), []string{TagProducts}, s.ttl,
		func(ctx context.Context) ([]domain.Product, error) {
			return s.backend.GetProductRecommendations(ctx, productID)
		})
}

func (s *Service) GetCollection(ctx context.Context, handle string) (*domain.Collection, error) {
	return cache.Fetch(ctx, s.reads, queryKey("collection", handle), []string{TagCollections}, s.ttl,
		func(ctx context.Context) (*domain.Collection, error) {
			return s.backend.GetCollection(ctx, handle)
		})
}

// GetCollections lists the "All" pseudo collection first, followed by every
// collection whose handle does not start with "hidden".
func (s *Service) GetCollections(ctx context.Context) ([]domain.Collection, error) {
	return cache.Fetch(ctx, s.reads, queryKey("collections"), []string{TagCollections}, s.ttl,
		func(ctx context.Context) ([]domain.Collection, error) {
			remote, err := s.backend.GetCollections(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]domain.Collection, 0, len(remote)+1)
			out = append(out, domain.Collection{
				Handle:      "",
				Title:       "All",
				Description: "All products",
				SEO:         domain.SEO{Title: "All", Description: "All products"},
				Path:        "/search",
				UpdatedAt:   s.now().UTC(),
			})
			for _, c := range remote {
				if strings.HasPrefix(c.Handle, "hidden") {
					continue
				}
				out = append(out, c)
			}
			s.logger.DebugContext(ctx, "collections loaded", slog.Int("remote", len(remote)), slog.Int("listed", len(out)-1))
			return out, nil
		})
}

func (s *Service) GetCollectionProducts(ctx context.Context, handle string, q gateway.ProductQuery) ([]domain.Product, error) {
	key := queryKey("collection-products", handle, q.SortKey, q.Reverse)
	return cache.Fetch(ctx, s.reads, key, []string{TagCollections, TagProducts}, s.ttl,
		func(ctx context.Context) ([]domain.Product, error) {
			return s.backend.GetCollectionProducts(ctx, handle, q)
		})
}

func (s *Service) GetMenu(ctx context.Context, handle string) ([]domain.Menu, error) {
	return cache.Fetch(ctx, s.reads, queryKey("menu", handle), []string{TagCollections}, s.ttl,
		func(ctx context.Context) ([]domain.Menu, error) {
			return s.backend.GetMenu(ctx, handle)
		})
}

// GetPage and GetPages always go to the backend.
func (s *Service) GetPage(ctx context.Context, handle string) (*domain.Page, error) {
	return s.backend.GetPage(ctx, handle)
}

func (s *Service) GetPages(ctx context.Context) ([]domain.Page, error) {
	return s.backend.GetPages(ctx)
}

func (s *Service) GetBlogs(ctx context.Context, articlesFirst int) ([]domain.Blog, error) {
	if articlesFirst <= 0 {
		articlesFirst = 3
	}
	return cache.Fetch(ctx, s.reads, queryKey("blogs", articlesFirst), []string{TagBlogs}, s.ttl,
		func(ctx context.Context) ([]domain.Blog, error) {
			return s.backend.GetBlogs(ctx, articlesFirst)
		})
}

func (s *Service) GetBlog(ctx context.Context, handle string) (*domain.Blog, error) {
	return cache.Fetch(ctx, s.reads, queryKey("blog", handle), []string{TagBlogs}, s.ttl,
		func(ctx context.Context) (*domain.Blog, error) {
			return s.backend.GetBlog(ctx, handle)
		})
}

func (s *Service) GetArticle(ctx context.Context, blogHandle, articleHandle string) (*domain.Article, error) {
	return cache.Fetch(ctx, s.reads, queryKey("article", blogHandle, articleHandle), []string{TagArticles}, s.ttl,
		func(ctx context.Context) (*domain.Article, error) {
			return s.backend.GetArticle(ctx, blogHandle, articleHandle)
		})
}

func (s *Service) GetBlogArticles(ctx context.Context, q gateway.ArticleQuery) (*domain.ArticlePage, error) {
	if q.First <= 0 {
		q.First = 20
	}
	if q.SortKey == "" {
		q.SortKey = "PUBLISHED_AT"
		q.Reverse = true
	}
	key := queryKey("blog-articles", q.BlogHandle, q.First, q.After, q.SortKey, q.Reverse)
	return cache.Fetch(ctx, s.reads, key, []string{TagArticles}, s.ttl,
		func(ctx context.Context) (*domain.ArticlePage, error) {
			return s.backend.GetBlogArticles(ctx, q)
		})
}

func (s *Service) GetArticlesByTag(ctx context.Context, blogHandle, tag string, first int) ([]domain.Article, error) {
	if first <= 0 {
		first = 20
	}
	key := queryKey("articles-by-tag", blogHandle, tag, first)
	return cache.Fetch(ctx, s.reads, key, []string{TagArticles}, s.ttl,
		func(ctx context.Context) ([]domain.Article, error) {
			return s.backend.GetArticlesByTag(ctx, blogHandle, tag, first)
		})
}

// FindVariant resolves a variant id within the product identified by handle.
func (s *Service) FindVariant(ctx context.Context, handle, variantID string) (domain.ProductVariant, *domain.Product, error) {
	p, err := s.GetProduct(ctx, handle)
	if err != nil {
		return domain.ProductVariant{}, nil, err
	}
	if p == nil {
		return domain.ProductVariant{}, nil, ErrProductNotFound
	}
	v, ok := p.Variant(variantID)
	if !ok {
		return domain.ProductVariant{}, p, ErrVariantNotFound
	}
	return v, p, nil
}
