package gateway

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productJSON(handle, title string, tags ...string) string {
	quoted := make([]string, len(tags))
	for i, t := range tags {
		quoted[i] = `"` + t + `"`
	}
	return `{
  "id": "gid://shopify/Product/` + handle + `",
  "handle": "` + handle + `",
  "availableForSale": true,
  "title": "` + title + `",
  "options": [{"id": "o1", "name": "Size", "values": ["S", "M"]}],
  "priceRange": {
    "maxVariantPrice": {"amount": "20.0", "currencyCode": "USD"},
    "minVariantPrice": {"amount": "10.0", "currencyCode": "USD"}
  },
  "variants": {"edges": [{"node": {
    "id": "gid://shopify/ProductVariant/` + handle + `-s",
    "title": "S",
    "availableForSale": true,
    "selectedOptions": [{"name": "Size", "value": "S"}],
    "price": {"amount": "10.0", "currencyCode": "USD"},
    "compareAtPrice": null
  }}]},
  "featuredImage": {"url": "https://cdn.example/files/` + handle + `.jpg?v=1", "altText": "", "width": 1, "height": 1},
  "images": {"edges": [
    {"node": {"url": "https://cdn.example/files/` + handle + `-front.jpg?v=2", "altText": null, "width": 1, "height": 1}},
    {"node": {"url": "https://cdn.example/files/back.png", "altText": "Back view", "width": 1, "height": 1}}
  ]},
  "seo": {"title": "", "description": ""},
  "tags": [` + strings.Join(quoted, ",") + `],
  "updatedAt": "2024-05-01T10:00:00Z"
}`
}

func TestGetProduct_KeepsHiddenAndFillsAltText(t *testing.T) {
	c, seen := fakeBackend(t, func(req recordedRequest) (int, string) {
		return 200, `{"data":{"product":` + productJSON("tee", "Tee", HiddenProductTag) + `}}`
	})

	p, err := c.GetProduct(context.Background(), "tee")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "tee", (*seen)[0].Variables["handle"])
	assert.Equal(t, "Tee - tee-front", p.Images[0].AltText)
	assert.Equal(t, "Back view", p.Images[1].AltText)
	require.Len(t, p.Variants, 1)
	assert.Nil(t, p.Variants[0].CompareAtPrice)
	assert.Equal(t, "10", p.Variants[0].Price.Amount.String())
}

func TestGetProduct_NotFound(t *testing.T) {
	c, _ := fakeBackend(t, func(req recordedRequest) (int, string) {
		return 200, `{"data":{"product":null}}`
	})
	p, err := c.GetProduct(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestGetProducts_FiltersHidden(t *testing.T) {
	c, seen := fakeBackend(t, func(req recordedRequest) (int, string) {
		return 200, `{"data":{"products":{"edges":[{"node":` + productJSON("a", "A") + `},{"node":` +
			productJSON("b", "B", HiddenProductTag) + `}]}}}`
	})

	products, err := c.GetProducts(context.Background(), ProductQuery{Query: "shirt", SortKey: "PRICE", Reverse: true})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "a", products[0].Handle)

	vars := (*seen)[0].Variables
	assert.Equal(t, "shirt", vars["query"])
	assert.Equal(t, "PRICE", vars["sortKey"])
	assert.Equal(t, true, vars["reverse"])
}

func TestGetCollectionProducts_SortKeyAndMissingCollection(t *testing.T) {
	c, seen := fakeBackend(t, func(req recordedRequest) (int, string) {
		return 200, `{"data":{"collection":null}}`
	})

	products, err := c.GetCollectionProducts(context.Background(), "nope", ProductQuery{SortKey: "CREATED_AT"})
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.NotNil(t, products)
	assert.Equal(t, "CREATED", (*seen)[0].Variables["sortKey"])
}

func TestGetCollections_SetsPath(t *testing.T) {
	c, _ := fakeBackend(t, func(req recordedRequest) (int, string) {
		return 200, `{"data":{"collections":{"edges":[{"node":{"handle":"shoes","title":"Shoes","description":"","seo":{"title":"","description":""},"updatedAt":"2024-01-01T00:00:00Z"}}]}}}`
	})

	cols, err := c.GetCollections(context.Background())
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "/collections/shoes", cols[0].Path)
}

func TestGetMenu_RewritesPaths(t *testing.T) {
	var c *Client
	c, _ = fakeBackend(t, func(req recordedRequest) (int, string) {
		return 200, `{"data":{"menu":{"items":[
			{"title":"Shoes","url":"` + c.domain + `/collections/shoes"},
			{"title":"About","url":"` + c.domain + `/pages/about"}
		]}}}`
	})

	menu, err := c.GetMenu(context.Background(), "main-menu")
	require.NoError(t, err)
	require.Len(t, menu, 2)
	assert.Equal(t, "/search/shoes", menu[0].Path)
	assert.Equal(t, "/about", menu[1].Path)
}

func TestGetMenu_Missing(t *testing.T) {
	c, _ := fakeBackend(t, func(req recordedRequest) (int, string) {
		return 200, `{"data":{"menu":null}}`
	})
	menu, err := c.GetMenu(context.Background(), "footer")
	require.NoError(t, err)
	assert.Empty(t, menu)
}

const articleJSON = `{"id":"a1","title":"Hello","handle":"hello","contentHtml":"<p>hi</p>","excerpt":"hi",
"publishedAt":"2024-02-01T00:00:00Z","tags":["news"],"image":null,
"authorV2":{"name":"Ann","email":"ann@example.com"},"seo":{"title":"Hello","description":""}}`

func TestGetBlogArticles(t *testing.T) {
	c, seen := fakeBackend(t, func(req recordedRequest) (int, string) {
		return 200, `{"data":{"blogByHandle":{"articles":{"edges":[{"node":` + articleJSON + `}],
"pageInfo":{"hasNextPage":true,"hasPreviousPage":false,"startCursor":"s","endCursor":"e"}}}}}`
	})

	page, err := c.GetBlogArticles(context.Background(), ArticleQuery{BlogHandle: "news", First: 20, SortKey: "PUBLISHED_AT", Reverse: true})
	require.NoError(t, err)
	require.Len(t, page.Articles, 1)
	assert.Equal(t, "Ann", page.Articles[0].Author.DisplayName)
	assert.Equal(t, "news", page.Articles[0].BlogHandle)
	assert.True(t, page.PageInfo.HasNextPage)
	assert.Equal(t, "e", page.PageInfo.EndCursor)
	_, hasAfter := (*seen)[0].Variables["after"]
	assert.False(t, hasAfter)
}

func TestGetArticlesByTag_QueriesTag(t *testing.T) {
	c, seen := fakeBackend(t, func(req recordedRequest) (int, string) {
		return 200, `{"data":{"blogByHandle":{"articles":{"edges":[{"node":` + articleJSON + `}]}}}}`
	})

	arts, err := c.GetArticlesByTag(context.Background(), "news", "launch", 5)
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, "tag:launch", (*seen)[0].Variables["tag"])
}

func TestGetArticle_Missing(t *testing.T) {
	c, _ := fakeBackend(t, func(req recordedRequest) (int, string) {
		return 200, `{"data":{"blogByHandle":{"articleByHandle":null}}}`
	})
	a, err := c.GetArticle(context.Background(), "news", "nope")
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestImageFilename(t *testing.T) {
	assert.Equal(t, "shirt", imageFilename("https://cdn.example/a/b/shirt.webp?width=100"))
	assert.Equal(t, "plain", imageFilename("plain.png"))
}
