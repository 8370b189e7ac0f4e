package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/nilecart/storefront/internal/domain/checkout"
	"github.com/nilecart/storefront/internal/domain/order"
)

type customerRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
}

type checkoutRequest struct {
	Method        string          `json:"method"`
	Customer      customerRequest `json:"customer"`
	DeclaredTotal decimal.Decimal `json:"total"`
}

type completionRequest struct {
	Customer        customerRequest `json:"customer"`
	DeclaredTotal   decimal.Decimal `json:"total"`
	ProviderOrderID string          `json:"provider_order_id,omitempty"`
	Payload         json.RawMessage `json:"payload,omitempty"`
}

// outcomeView is the tagged checkout result.
type outcomeView struct {
	Kind        string          `json:"kind"`
	OrderID     string          `json:"order_id,omitempty"`
	PaymentURL  string          `json:"payment_url,omitempty"`
	ProviderRef string          `json:"provider_ref,omitempty"`
	Amount      decimal.Decimal `json:"amount,omitempty"`
	Currency    string          `json:"currency,omitempty"`
}

func toOutcomeView(o *checkout.Outcome) outcomeView {
	return outcomeView{
		Kind:        string(o.Kind),
		OrderID:     o.OrderID,
		PaymentURL:  o.PaymentURL,
		ProviderRef: o.ProviderRef,
		Amount:      o.Amount,
		Currency:    o.Currency,
	}
}

func (c customerRequest) toDomain() order.Customer {
	return order.Customer{
		Name:    c.Name,
		Email:   c.Email,
		Phone:   c.Phone,
		Address: c.Address,
		City:    c.City,
	}
}

// Checkout dispatches the cart to the requested payment method. The declared
// total is a consistency check only; totals are recomputed server-side.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Customer.Email == "" {
		respondError(w, r, http.StatusBadRequest, "invalid_customer", "customer email is required")
		return
	}

	out, err := h.checkouts.Checkout(r.Context(), checkout.Request{
		CartID:          chi.URLParam(r, "cartID"),
		Method:          order.PaymentMethod(req.Method),
		Customer:        req.Customer.toDomain(),
		DisplayCurrency: h.currency,
		DeclaredTotal:   req.DeclaredTotal,
	})
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toOutcomeView(out))
}

// CompletePayPal finalizes a PayPal button-flow session by capturing the
// approved provider order.
func (h *Handler) CompletePayPal(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProviderOrderID == "" {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "provider_order_id is required")
		return
	}

	out, err := h.checkouts.CompletePayPal(r.Context(), checkout.CompletionRequest{
		CartID:          chi.URLParam(r, "cartID"),
		Customer:        req.Customer.toDomain(),
		DisplayCurrency: h.currency,
		DeclaredTotal:   req.DeclaredTotal,
		ProviderOrderID: req.ProviderOrderID,
	})
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toOutcomeView(out))
}

// CompleteApplePay finalizes an Apple Pay session by authorizing the opaque
// payment token.
func (h *Handler) CompleteApplePay(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if len(req.Payload) == 0 {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "payload is required")
		return
	}

	out, err := h.checkouts.CompleteApplePay(r.Context(), checkout.CompletionRequest{
		CartID:          chi.URLParam(r, "cartID"),
		Customer:        req.Customer.toDomain(),
		DisplayCurrency: h.currency,
		DeclaredTotal:   req.DeclaredTotal,
		Payload:         req.Payload,
	})
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toOutcomeView(out))
}
