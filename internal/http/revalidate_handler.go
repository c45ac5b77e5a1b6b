package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/webhook"
)

const shopifyTopicHeader = "X-Shopify-Topic"

// Revalidator handles one change notification.
type Revalidator interface {
	Handle(ctx context.Context, n webhook.Notification) (webhook.Result, error)
}

type RevalidateHandler struct {
	revalidator Revalidator
	timeout     time.Duration
}

func NewRevalidateHandler(revalidator Revalidator, timeout time.Duration) *RevalidateHandler {
	return &RevalidateHandler{
		revalidator: revalidator,
		timeout:     timeout,
	}
}

type RevalidateResponse struct {
	Status      int   `json:"status"`
	Revalidated bool  `json:"revalidated"`
	Now         int64 `json:"now"`
}

// Revalidate accepts webhook calls of the form POST /api/revalidate?secret=...
// with the change topic in the X-Shopify-Topic header.
func (h *RevalidateHandler) Revalidate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.revalidator.Handle(ctx, webhook.Notification{
		Secret: r.URL.Query().Get("secret"),
		Topic:  r.Header.Get(shopifyTopicHeader),
	})
	if errors.Is(err, webhook.ErrUnauthorized) {
		respondError(w, http.StatusUnauthorized, "invalid_secret", "invalid revalidation secret")
		return
	}
	// Other failures are logged by the invalidator and still acknowledged.

	respondJSON(w, http.StatusOK, &RevalidateResponse{
		Status:      http.StatusOK,
		Revalidated: res.Revalidated,
		Now:         res.Now.UnixMilli(),
	})
}
