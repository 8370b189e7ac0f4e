// Package handler exposes the storefront HTTP API: catalog browsing, cart
// manipulation, promo application, and checkout dispatch.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/nilecart/storefront/internal/domain/cart"
	"github.com/nilecart/storefront/internal/domain/checkout"
	"github.com/nilecart/storefront/internal/domain/product"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
	// CartTokenPepper keys the HMAC that signs cart tokens.
	CartTokenPepper []byte
	// DisplayCurrency is the currency prices are quoted in.
	DisplayCurrency string
}

// Handler wires the HTTP surface to the domain services.
type Handler struct {
	products     product.Repository
	carts        *cart.Service
	checkouts    *checkout.Service
	tokens       *TokenSigner
	imageBaseURL string
	currency     string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	products product.Repository,
	carts *cart.Service,
	checkouts *checkout.Service,
) *Handler {
	return &Handler{
		products:     products,
		carts:        carts,
		checkouts:    checkouts,
		tokens:       NewTokenSigner(cfg.CartTokenPepper),
		imageBaseURL: cfg.ImageBaseURL,
		currency:     cfg.DisplayCurrency,
	}
}

// Routes mounts all API routes on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/products", h.ListProducts)
	r.Get("/products/{productID}", h.GetProduct)

	r.Post("/carts", h.CreateCart)
	r.Group(func(r chi.Router) {
		r.Use(h.RequireCartToken)
		r.Get("/carts/{cartID}", h.GetCart)
		r.Post("/carts/{cartID}/items", h.AddItem)
		r.Put("/carts/{cartID}/items/{productID}", h.UpdateQuantity)
		r.Delete("/carts/{cartID}/items/{productID}", h.RemoveItem)
		r.Post("/carts/{cartID}/promo", h.ApplyPromo)
		r.Delete("/carts/{cartID}/promo", h.ClearPromo)

		r.Post("/carts/{cartID}/checkout", h.Checkout)
		r.Post("/carts/{cartID}/checkout/paypal/complete", h.CompletePayPal)
		r.Post("/carts/{cartID}/checkout/applepay/complete", h.CompleteApplePay)
	})

	return r
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zctx.From(r.Context()).Warn("failed to encode response", zap.Error(err))
	}
}

func decodeJSON(r *http.Request, dst any) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
