package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/nilecart/storefront/internal/domain/cart"
	"github.com/nilecart/storefront/internal/domain/checkout"
	"github.com/nilecart/storefront/internal/domain/order"
	"github.com/nilecart/storefront/internal/domain/product"
	"github.com/nilecart/storefront/internal/domain/promo"
)

// errorResponse is the JSON error envelope. Code is a machine-readable reason
// the storefront client can branch on for inline display.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, r, status, errorResponse{Code: code, Message: message})
}

// mapError translates domain errors to HTTP responses. Promo rejections are
// 422 with a per-reason code so the client can render the exact message
// inline without parsing prose.
func mapError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cart.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "cart_not_found", "cart not found")
	case errors.Is(err, cart.ErrLineNotFound):
		respondError(w, r, http.StatusNotFound, "line_not_found", "product is not in the cart")
	case errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, r, http.StatusBadRequest, "invalid_quantity", "quantity must be greater than 0")
	case errors.Is(err, cart.ErrConcurrentUpdate):
		respondError(w, r, http.StatusConflict, "concurrent_update", "cart was modified concurrently, retry")
	case errors.Is(err, product.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "product_not_found", "product not found")
	case errors.Is(err, order.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "order_not_found", "order not found")

	case errors.Is(err, promo.ErrNotFound):
		respondError(w, r, http.StatusUnprocessableEntity, "promo_not_found", "promo code not found")
	case errors.Is(err, promo.ErrInactive):
		respondError(w, r, http.StatusUnprocessableEntity, "promo_inactive", "promo code is not active")
	case errors.Is(err, promo.ErrExpired):
		respondError(w, r, http.StatusUnprocessableEntity, "promo_expired", "promo code has expired")
	case errors.Is(err, promo.ErrExhausted):
		respondError(w, r, http.StatusUnprocessableEntity, "promo_exhausted", "promo code usage limit reached")

	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, r, http.StatusBadRequest, "empty_cart", "cart is empty")
	case errors.Is(err, checkout.ErrUnknownMethod):
		respondError(w, r, http.StatusBadRequest, "unknown_method", "unknown payment method")

	default:
		var belowMin *promo.BelowMinimumError
		if errors.As(err, &belowMin) {
			respondError(w, r, http.StatusUnprocessableEntity, "promo_below_minimum", belowMin.Error())
			return
		}
		var unavailable *checkout.ProductUnavailableError
		if errors.As(err, &unavailable) {
			respondError(w, r, http.StatusUnprocessableEntity, "product_unavailable", unavailable.Error())
			return
		}
		var mismatch *checkout.TotalMismatchError
		if errors.As(err, &mismatch) {
			respondError(w, r, http.StatusConflict, "total_mismatch", mismatch.Error())
			return
		}
		var gateway *checkout.GatewayError
		if errors.As(err, &gateway) {
			zctx.From(r.Context()).Error("payment gateway failure",
				zap.String("provider", gateway.Provider),
				zap.Error(gateway.Err),
			)
			respondError(w, r, http.StatusBadGateway, "gateway_error", "payment provider is unavailable, try again or switch methods")
			return
		}

		zctx.From(r.Context()).Error("unhandled error", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
