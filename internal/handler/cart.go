package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/nilecart/storefront/internal/domain/cart"
	"github.com/nilecart/storefront/internal/domain/promo"
)

// cartView is the API shape of a cart. Subtotal and total are recomputed from
// the live lines on every render.
type cartView struct {
	ID       string            `json:"id"`
	Token    string            `json:"token,omitempty"`
	Lines    []cartLineView    `json:"lines"`
	Promo    *promo.Validation `json:"promo,omitempty"`
	Subtotal decimal.Decimal   `json:"subtotal"`
	Total    decimal.Decimal   `json:"total"`
	Currency string            `json:"currency"`
}

type cartLineView struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

func (h *Handler) toCartView(c *cart.Cart, token string) cartView {
	lines := make([]cartLineView, len(c.Lines))
	for i, l := range c.Lines {
		unit := l.UnitPrice()
		lines[i] = cartLineView{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: unit,
			LineTotal: unit.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2),
		}
	}
	return cartView{
		ID:       c.ID,
		Token:    token,
		Lines:    lines,
		Promo:    c.Promo,
		Subtotal: c.Subtotal(),
		Total:    c.Total(),
		Currency: h.currency,
	}
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type applyPromoRequest struct {
	Code string `json:"code"`
}

// CreateCart starts a new anonymous cart and returns its signed token. The
// token must accompany every subsequent request for this cart.
func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Create(r.Context())
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, h.toCartView(c, h.tokens.Sign(c.ID)))
}

// GetCart returns the cart with recomputed totals.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), chi.URLParam(r, "cartID"))
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, h.toCartView(c, ""))
}

// AddItem adds a product to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, r, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	c, err := h.carts.AddItem(r.Context(), chi.URLParam(r, "cartID"), req.ProductID, req.Quantity)
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, h.toCartView(c, ""))
}

// UpdateQuantity sets a line's quantity.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req updateQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	c, err := h.carts.UpdateQuantity(r.Context(), chi.URLParam(r, "cartID"), chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, h.toCartView(c, ""))
}

// RemoveItem removes a line from the cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.RemoveItem(r.Context(), chi.URLParam(r, "cartID"), chi.URLParam(r, "productID"))
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, h.toCartView(c, ""))
}

// ApplyPromo validates a promo code against the current subtotal and applies
// it. Rejections return 422 with a reason code; the cart is left untouched.
func (h *Handler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	var req applyPromoRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Code == "" {
		respondError(w, r, http.StatusBadRequest, "invalid_code", "code is required")
		return
	}

	c, err := h.carts.ApplyPromo(r.Context(), chi.URLParam(r, "cartID"), req.Code)
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, h.toCartView(c, ""))
}

// ClearPromo removes the applied promo.
func (h *Handler) ClearPromo(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.ClearPromo(r.Context(), chi.URLParam(r, "cartID"))
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, h.toCartView(c, ""))
}
