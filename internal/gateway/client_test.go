package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_storefront/pkg/circuitbreaker"
	"github.com/fjod/go_storefront/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
	Token     string         `json:"-"`
}

// fakeBackend answers each GraphQL request with respond(req).
func fakeBackend(t *testing.T, respond func(req recordedRequest) (int, string)) (*Client, *[]recordedRequest) {
	t.Helper()
	var seen []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req recordedRequest
		require.NoError(t, json.Unmarshal(body, &req))
		req.Token = r.Header.Get(accessTokenHeader)
		seen = append(seen, req)

		status, resp := respond(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, resp)
	}))
	t.Cleanup(srv.Close)

	breaker := circuitbreaker.DefaultConfig("test")
	breaker.ConsecutiveFailures = 3
	breaker.Timeout = time.Hour

	c := NewClient(Config{
		Domain:      srv.URL,
		APIPath:     "/graphql",
		AccessToken: "token-123",
		Breaker:     breaker,
	}, logger.Discard())
	return c, &seen
}

const cartJSON = `{
  "id": "gid://shopify/Cart/1",
  "checkoutUrl": "https://shop.example/checkout/1",
  "cost": {
    "subtotalAmount": {"amount": "30.0", "currencyCode": "USD"},
    "totalAmount": {"amount": "32.40", "currencyCode": "USD"},
    "totalTaxAmount": {"amount": "2.40", "currencyCode": "USD"}
  },
  "lines": {"edges": [{"node": {
    "id": "gid://shopify/CartLine/1",
    "quantity": 3,
    "cost": {"totalAmount": {"amount": "30.0", "currencyCode": "USD"}},
    "merchandise": {
      "id": "gid://shopify/ProductVariant/10",
      "title": "M / Black",
      "selectedOptions": [{"name": "Size", "value": "M"}],
      "product": {"id": "gid://shopify/Product/5", "handle": "tee", "title": "Tee",
        "featuredImage": {"url": "https://cdn.example/tee.png", "altText": "Tee", "width": 10, "height": 10}}
    }
  }}]},
  "totalQuantity": 3
}`

func TestCreateCart(t *testing.T) {
	c, seen := fakeBackend(t, func(req recordedRequest) (int, string) {
		return 200, `{"data":{"cartCreate":{"cart":` + cartJSON + `,"userErrors":[]}}}`
	})

	cart, err := c.CreateCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/Cart/1", cart.ID)
	assert.Equal(t, "token-123", (*seen)[0].Token)
	assert.Contains(t, (*seen)[0].Query, "cartCreate")
}

func TestAddLines_ReshapesCart(t *testing.T) {
	c, seen := fakeBackend(t, func(req recordedRequest) (int, string) {
		return 200, `{"data":{"cartLinesAdd":{"cart":` + cartJSON + `,"userErrors":[]}}}`
	})

	cart, err := c.AddLines(context.Background(), "gid://shopify/Cart/1", []LineInput{{MerchandiseID: "gid://shopify/ProductVariant/10", Quantity: 3}})
	require.NoError(t, err)

	req := (*seen)[0]
	assert.Equal(t, "gid://shopify/Cart/1", req.Variables["cartId"])
	lines := req.Variables["lines"].([]any)
	assert.Equal(t, "gid://shopify/ProductVariant/10", lines[0].(map[string]any)["merchandiseId"])

	require.Len(t, cart.Lines, 1)
	line := cart.Lines[0]
	assert.True(t, line.Confirmed())
	assert.Equal(t, "tee", line.Merchandise.ProductHandle)
	assert.Equal(t, "https://cdn.example/tee.png", line.Merchandise.FeaturedImage.URL)
	assert.Equal(t, "10", line.UnitPrice().Amount.String())
	assert.Equal(t, "32.4", cart.Cost.Total.Amount.String())
	assert.Equal(t, "2.4", cart.Cost.Tax.Amount.String())
}

func TestGetCart_DefaultsMissingTax(t *testing.T) {
	noTax := strings.Replace(cartJSON, `"totalTaxAmount": {"amount": "2.40", "currencyCode": "USD"}`, `"totalTaxAmount": null`, 1)
	c, _ := fakeBackend(t, func(req recordedRequest) (int, string) {
		return 200, `{"data":{"cart":` + noTax + `}}`
	})

	cart, err := c.GetCart(context.Background(), "gid://shopify/Cart/1")
	require.NoError(t, err)
	assert.True(t, cart.Cost.Tax.IsZero())
	assert.Equal(t, "USD", cart.Cost.Tax.CurrencyCode)
}

func TestGetCart_AbsentIsNotAnError(t *testing.T) {
	c, seen := fakeBackend(t, func(req recordedRequest) (int, string) {
		return 200, `{"data":{"cart":null}}`
	})

	cart, err := c.GetCart(context.Background(), "gid://shopify/Cart/gone")
	require.NoError(t, err)
	assert.Nil(t, cart)

	cart, err = c.GetCart(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, cart)
	assert.Len(t, *seen, 1)
}

func TestMutation_UserErrorsAreValidationErrors(t *testing.T) {
	c, _ := fakeBackend(t, func(req recordedRequest) (int, string) {
		return 200, `{"data":{"cartLinesUpdate":{"cart":null,"userErrors":[{"code":"INVALID","field":["lines"],"message":"Merchandise is not available"}]}}}`
	})

	_, err := c.UpdateLines(context.Background(), "cart", []LineUpdate{{ID: "l", MerchandiseID: "m", Quantity: 1}})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.False(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "Merchandise is not available")
}

func TestMutation_MissingCart(t *testing.T) {
	c, _ := fakeBackend(t, func(req recordedRequest) (int, string) {
		if strings.Contains(req.Query, "cartLinesRemove") {
			return 200, `{"data":{"cartLinesRemove":{"cart":null,"userErrors":[{"code":"INVALID","field":["cartId"],"message":"The specified cart does not exist."}]}}}`
		}
		return 200, `{"data":{"cartLinesAdd":{"cart":null,"userErrors":[]}}}`
	})

	_, err := c.RemoveLines(context.Background(), "cart", []string{"l"})
	assert.ErrorIs(t, err, ErrCartNotFound)

	_, err = c.AddLines(context.Background(), "cart", []LineInput{{MerchandiseID: "m", Quantity: 1}})
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestDo_GraphQLErrorIsValidation(t *testing.T) {
	c, _ := fakeBackend(t, func(req recordedRequest) (int, string) {
		return 200, `{"errors":[{"message":"Variable $cartId of type ID! was provided invalid value","extensions":{"code":"INVALID_VARIABLE"}}]}`
	})

	_, err := c.GetCart(context.Background(), "bad")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "INVALID_VARIABLE", ve.Errors[0].Code)
}

func TestDo_ThrottledAndServerErrorsAreTransient(t *testing.T) {
	var calls int32
	c, _ := fakeBackend(t, func(req recordedRequest) (int, string) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return 200, `{"errors":[{"message":"Throttled","extensions":{"code":"THROTTLED"}}]}`
		}
		return 503, `upstream down`
	})

	_, err := c.CreateCart(context.Background())
	assert.True(t, IsRetryable(err))

	_, err = c.CreateCart(context.Background())
	assert.True(t, IsRetryable(err))
	assert.False(t, IsValidation(err))
}

func TestDo_NetworkFailureIsTransient(t *testing.T) {
	c := NewClient(Config{Domain: "http://127.0.0.1:1", APIPath: "/graphql", Timeout: time.Second}, logger.Discard())
	_, err := c.GetCart(context.Background(), "cart")
	assert.ErrorIs(t, err, ErrTransient)
}

func TestDo_BreakerOpensOnTransientFailures(t *testing.T) {
	var calls int32
	c, _ := fakeBackend(t, func(req recordedRequest) (int, string) {
		atomic.AddInt32(&calls, 1)
		return 502, `bad gateway`
	})

	for i := 0; i < 5; i++ {
		_, err := c.CreateCart(context.Background())
		assert.ErrorIs(t, err, ErrTransient)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "breaker should stop calling through after 3 failures")
}

func TestDo_ValidationErrorsDoNotTripBreaker(t *testing.T) {
	var calls int32
	c, _ := fakeBackend(t, func(req recordedRequest) (int, string) {
		atomic.AddInt32(&calls, 1)
		return 200, `{"data":{"cartLinesAdd":{"cart":null,"userErrors":[{"code":"INVALID","message":"out of stock"}]}}}`
	})

	for i := 0; i < 5; i++ {
		_, err := c.AddLines(context.Background(), "cart", []LineInput{{MerchandiseID: "m", Quantity: 1}})
		assert.True(t, IsValidation(err))
	}
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}

func TestEnsureHTTPS(t *testing.T) {
	assert.Equal(t, "https://shop.example", EnsureHTTPS("shop.example"))
	assert.Equal(t, "https://shop.example", EnsureHTTPS("https://shop.example"))
	assert.Equal(t, "http://localhost:9", EnsureHTTPS("http://localhost:9"))
	assert.Equal(t, "", EnsureHTTPS(""))
}
