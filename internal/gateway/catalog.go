package gateway

import (
	"context"
	"log/slog"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
)

// HiddenProductTag hides a product from listings; direct handle lookups still return it.
const HiddenProductTag = "nextjs-frontend-hidden"

type wireProduct struct {
	ID               string                            `json:"id"`
	Handle           string                            `json:"handle"`
	AvailableForSale bool                              `json:"availableForSale"`
	Title            string                            `json:"title"`
	Description      string                            `json:"description"`
	DescriptionHTML  string                            `json:"descriptionHtml"`
	Options          []domain.ProductOption            `json:"options"`
	PriceRange       domain.PriceRange                 `json:"priceRange"`
	Variants         connection[domain.ProductVariant] `json:"variants"`
	FeaturedImage    *domain.Image                     `json:"featuredImage"`
	Images           connection[domain.Image]          `json:"images"`
	SEO              domain.SEO                        `json:"seo"`
	Tags             []string                          `json:"tags"`
	UpdatedAt        time.Time                         `json:"updatedAt"`
}

func reshapeProduct(w *wireProduct, filterHidden bool) *domain.Product {
	if w == nil || (filterHidden && slices.Contains(w.Tags, HiddenProductTag)) {
		return nil
	}
	p := &domain.Product{
		ID:               w.ID,
		Handle:           w.Handle,
		AvailableForSale: w.AvailableForSale,
		Title:            w.Title,
		Description:      w.Description,
		DescriptionHTML:  w.DescriptionHTML,
		Options:          w.Options,
		PriceRange:       w.PriceRange,
		Variants:         w.Variants.nodes(),
		Images:           reshapeImages(w.Images.nodes(), w.Title),
		SEO:              w.SEO,
		Tags:             w.Tags,
		UpdatedAt:        w.UpdatedAt,
	}
	if w.FeaturedImage != nil {
		p.FeaturedImage = *w.FeaturedImage
	}
	return p
}

func reshapeProducts(ws []*wireProduct) []domain.Product {
	out := make([]domain.Product, 0, len(ws))
	for _, w := range ws {
		if p := reshapeProduct(w, true); p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// reshapeImages fills missing alt text with "<product title> - <file name>".
func reshapeImages(images []domain.Image, productTitle string) []domain.Image {
	for i, img := range images {
		if img.AltText == "" {
			images[i].AltText = productTitle + " - " + imageFilename(img.URL)
		}
	}
	return images
}

func imageFilename(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

func reshapeCollection(c *domain.Collection) *domain.Collection {
	if c == nil {
		return nil
	}
	c.Path = "/collections/" + c.Handle
	return c
}

type ProductQuery struct {
	Query   string
	SortKey string
	Reverse bool
}

func (c *Client) GetProduct(ctx context.Context, handle string) (*domain.Product, error) {
	var res struct {
		Product *wireProduct `json:"product"`
	}
	if err := c.do(ctx, "getProduct", getProductQuery, map[string]any{"handle": handle}, &res); err != nil {
		return nil, err
	}
	return reshapeProduct(res.Product, false), nil
}

func (c *Client) GetProducts(ctx context.Context, q ProductQuery) ([]domain.Product, error) {
	var res struct {
		Products connection[*wireProduct] `json:"products"`
	}
	vars := map[string]any{"query": q.Query, "reverse": q.Reverse}
	if q.SortKey != "" {
		vars["sortKey"] = q.SortKey
	}
	if err := c.do(ctx, "getProducts", getProductsQuery, vars, &res); err != nil {
		return nil, err
	}
	return reshapeProducts(res.Products.nodes()), nil
}

func (c *Client) GetProductRecommendations(ctx context.Context, productID string) ([]domain.Product, error) {
	var res struct {
		ProductRecommendations []*wireProduct `json:"productRecommendations"`
	}
	vars := map[string]any{"productId": productID}
	if err := c.do(ctx, "getProductRecommendations", getProductRecommendationsQuery, vars, &res); err != nil {
		return nil, err
	}
	return reshapeProducts(res.ProductRecommendations), nil
}

func (c *Client) GetCollection(ctx context.Context, handle string) (*domain.Collection, error) {
	var res struct {
		Collection *domain.Collection `json:"collection"`
	}
	if err := c.do(ctx, "getCollection", getCollectionQuery, map[string]any{"handle": handle}, &res); err != nil {
		return nil, err
	}
	return reshapeCollection(res.Collection), nil
}

func (c *Client) GetCollections(ctx context.Context) ([]domain.Collection, error) {
	var res struct {
		Collections connection[*domain.Collection] `json:"collections"`
	}
	if err := c.do(ctx, "getCollections", getCollectionsQuery, nil, &res); err != nil {
		return nil, err
	}
	out := make([]domain.Collection, 0, len(res.Collections.Edges))
	for _, col := range res.Collections.nodes() {
		if col = reshapeCollection(col); col != nil {
			out = append(out, *col)
		}
	}
	return out, nil
}

// GetCollectionProducts returns an empty list, not an error, for an unknown collection.
func (c *Client) GetCollectionProducts(ctx context.Context, handle string, q ProductQuery) ([]domain.Product, error) {
	sortKey := q.SortKey
	if sortKey == "CREATED_AT" {
		sortKey = "CREATED"
	}
	vars := map[string]any{"handle": handle, "reverse": q.Reverse}
	if sortKey != "" {
		vars["sortKey"] = sortKey
	}

	var res struct {
		Collection *struct {
			Products connection[*wireProduct] `json:"products"`
		} `json:"collection"`
	}
	if err := c.do(ctx, "getCollectionProducts", getCollectionProductsQuery, vars, &res); err != nil {
		return nil, err
	}
	if res.Collection == nil {
		c.logger.InfoContext(ctx, "no collection found", slog.String("handle", handle))
		return []domain.Product{}, nil
	}
	return reshapeProducts(res.Collection.Products.nodes()), nil
}

// GetMenu rewrites backend URLs into storefront paths.
func (c *Client) GetMenu(ctx context.Context, handle string) ([]domain.Menu, error) {
	var res struct {
		Menu *struct {
			Items []struct {
				Title string `json:"title"`
				URL   string `json:"url"`
			} `json:"items"`
		} `json:"menu"`
	}
	if err := c.do(ctx, "getMenu", getMenuQuery, map[string]any{"handle": handle}, &res); err != nil {
		return nil, err
	}
	out := []domain.Menu{}
	if res.Menu == nil {
		return out, nil
	}
	for _, item := range res.Menu.Items {
		p := item.URL
		if c.domain != "" {
			p = strings.Replace(p, c.domain, "", 1)
		}
		p = strings.Replace(p, "/collections", "/search", 1)
		p = strings.Replace(p, "/pages", "", 1)
		out = append(out, domain.Menu{Title: item.Title, Path: p})
	}
	return out, nil
}

func (c *Client) GetPage(ctx context.Context, handle string) (*domain.Page, error) {
	var res struct {
		PageByHandle *domain.Page `json:"pageByHandle"`
	}
	if err := c.do(ctx, "getPage", getPageQuery, map[string]any{"handle": handle}, &res); err != nil {
		return nil, err
	}
	return res.PageByHandle, nil
}

func (c *Client) GetPages(ctx context.Context) ([]domain.Page, error) {
	var res struct {
		Pages connection[domain.Page] `json:"pages"`
	}
	if err := c.do(ctx, "getPages", getPagesQuery, nil, &res); err != nil {
		return nil, err
	}
	return res.Pages.nodes(), nil
}

type wireArticle struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Handle      string        `json:"handle"`
	ContentHTML string        `json:"contentHtml"`
	Excerpt     string        `json:"excerpt"`
	PublishedAt time.Time     `json:"publishedAt"`
	Tags        []string      `json:"tags"`
	Image       *domain.Image `json:"image"`
	AuthorV2    *struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"authorV2"`
	SEO *domain.SEO `json:"seo"`
}

func (w wireArticle) toDomain(blogHandle string) domain.Article {
	a := domain.Article{
		ID:          w.ID,
		Title:       w.Title,
		Handle:      w.Handle,
		ContentHTML: w.ContentHTML,
		Excerpt:     w.Excerpt,
		PublishedAt: w.PublishedAt,
		Tags:        w.Tags,
		Image:       w.Image,
		BlogHandle:  blogHandle,
	}
	if w.AuthorV2 != nil {
		a.Author = domain.Author{DisplayName: w.AuthorV2.Name, Email: w.AuthorV2.Email}
	}
	if w.SEO != nil {
		a.SEO = *w.SEO
	}
	return a
}

func articles(conn connection[wireArticle], blogHandle string) []domain.Article {
	out := make([]domain.Article, 0, len(conn.Edges))
	for _, w := range conn.nodes() {
		out = append(out, w.toDomain(blogHandle))
	}
	return out
}

type wireBlog struct {
	ID       string                  `json:"id"`
	Title    string                  `json:"title"`
	Handle   string                  `json:"handle"`
	SEO      domain.SEO              `json:"seo"`
	Articles connection[wireArticle] `json:"articles"`
}

func (w *wireBlog) toDomain() *domain.Blog {
	if w == nil {
		return nil
	}
	return &domain.Blog{
		ID:       w.ID,
		Title:    w.Title,
		Handle:   w.Handle,
		SEO:      w.SEO,
		Articles: articles(w.Articles, w.Handle),
	}
}

// GetBlogs lists blogs, each with its articlesFirst most recent articles.
func (c *Client) GetBlogs(ctx context.Context, articlesFirst int) ([]domain.Blog, error) {
	var res struct {
		Blogs connection[*wireBlog] `json:"blogs"`
	}
	vars := map[string]any{"first": 10, "articlesFirst": articlesFirst}
	if err := c.do(ctx, "getBlogs", getBlogsQuery, vars, &res); err != nil {
		return nil, err
	}
	out := make([]domain.Blog, 0, len(res.Blogs.Edges))
	for _, b := range res.Blogs.nodes() {
		if blog := b.toDomain(); blog != nil {
			out = append(out, *blog)
		}
	}
	return out, nil
}

func (c *Client) GetBlog(ctx context.Context, handle string) (*domain.Blog, error) {
	var res struct {
		BlogByHandle *wireBlog `json:"blogByHandle"`
	}
	vars := map[string]any{"handle": handle, "first": 20}
	if err := c.do(ctx, "getBlog", getBlogQuery, vars, &res); err != nil {
		return nil, err
	}
	return res.BlogByHandle.toDomain(), nil
}

func (c *Client) GetArticle(ctx context.Context, blogHandle, articleHandle string) (*domain.Article, error) {
	var res struct {
		BlogByHandle *struct {
			ArticleByHandle *wireArticle `json:"articleByHandle"`
		} `json:"blogByHandle"`
	}
	vars := map[string]any{"blogHandle": blogHandle, "articleHandle": articleHandle}
	if err := c.do(ctx, "getArticle", getArticleQuery, vars, &res); err != nil {
		return nil, err
	}
	if res.BlogByHandle == nil || res.BlogByHandle.ArticleByHandle == nil {
		return nil, nil
	}
	a := res.BlogByHandle.ArticleByHandle.toDomain(blogHandle)
	return &a, nil
}

type ArticleQuery struct {
	BlogHandle string
	First      int
	After      string
	SortKey    string
	Reverse    bool
}

func (c *Client) GetBlogArticles(ctx context.Context, q ArticleQuery) (*domain.ArticlePage, error) {
	vars := map[string]any{
		"blogHandle": q.BlogHandle,
		"first":      q.First,
		"sortKey":    q.SortKey,
		"reverse":    q.Reverse,
	}
	if q.After != "" {
		vars["after"] = q.After
	}

	var res struct {
		BlogByHandle *struct {
			Articles struct {
				connection[wireArticle]
				PageInfo domain.PageInfo `json:"pageInfo"`
			} `json:"articles"`
		} `json:"blogByHandle"`
	}
	if err := c.do(ctx, "getBlogArticles", getBlogArticlesQuery, vars, &res); err != nil {
		return nil, err
	}
	page := &domain.ArticlePage{Articles: []domain.Article{}}
	if res.BlogByHandle == nil {
		return page, nil
	}
	page.Articles = articles(res.BlogByHandle.Articles.connection, q.BlogHandle)
	page.PageInfo = res.BlogByHandle.Articles.PageInfo
	return page, nil
}

func (c *Client) GetArticlesByTag(ctx context.Context, blogHandle, tag string, first int) ([]domain.Article, error) {
	var res struct {
		BlogByHandle *struct {
			Articles connection[wireArticle] `json:"articles"`
		} `json:"blogByHandle"`
	}
	vars := map[string]any{"blogHandle": blogHandle, "tag": "tag:" + tag, "first": first}
	if err := c.do(ctx, "getArticlesByTag", getArticlesByTagQuery, vars, &res); err != nil {
		return nil, err
	}
	if res.BlogByHandle == nil {
		return []domain.Article{}, nil
	}
	return articles(res.BlogByHandle.Articles, blogHandle), nil
}
