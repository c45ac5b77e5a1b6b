package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Handlers struct {
	Cart       *CartHandler
	Catalog    *CatalogHandler
	Revalidate *RevalidateHandler
}

func NewRouter(h Handlers, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/revalidate", h.Revalidate.Revalidate)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.GetCart)
			r.Post("/", h.Cart.CreateCart)
			r.Post("/items", h.Cart.AddItem)
			r.Patch("/items/{merchandise_id}", h.Cart.UpdateQuantity)
			r.Delete("/items/{merchandise_id}", h.Cart.RemoveItem)
			r.Post("/checkout", h.Cart.Checkout)
		})

		// {handle} carries the escaped product id on the recommendations route.
		r.Route("/products/{handle}", func(r chi.Router) {
			r.Get("/", h.Catalog.GetProduct)
			r.Get("/recommendations", h.Catalog.GetRecommendations)
		})
		r.Get("/search", h.Catalog.Search)

		r.Route("/collections", func(r chi.Router) {
			r.Get("/", h.Catalog.GetCollections)
			r.Get("/{handle}", h.Catalog.GetCollection)
			r.Get("/{handle}/products", h.Catalog.GetCollectionProducts)
		})

		r.Get("/menus/{handle}", h.Catalog.GetMenu)
		r.Get("/pages", h.Catalog.GetPages)
		r.Get("/pages/{handle}", h.Catalog.GetPage)

		r.Route("/blogs", func(r chi.Router) {
			r.Get("/", h.Catalog.GetBlogs)
			r.Get("/{handle}", h.Catalog.GetBlog)
			r.Get("/{handle}/articles", h.Catalog.GetBlogArticles)
			r.Get("/{handle}/articles/{article}", h.Catalog.GetArticle)
		})
	})

	return r
}
