package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/nilecart/storefront/internal/domain/pricing"
	"github.com/nilecart/storefront/internal/domain/product"
)

// productView is the API shape of a catalog product. EffectivePrice is the
// price the customer actually pays; the raw discount fields are included so
// the client can render strikethrough pricing.
type productView struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	BasePrice      decimal.Decimal  `json:"base_price"`
	DiscountPrice  *decimal.Decimal `json:"discount_price,omitempty"`
	DiscountActive bool             `json:"discount_active"`
	EffectivePrice decimal.Decimal  `json:"effective_price"`
	Category       string           `json:"category"`
	Image          imageView        `json:"image"`
}

type imageView struct {
	Thumbnail string `json:"thumbnail"`
	Mobile    string `json:"mobile"`
	Tablet    string `json:"tablet"`
	Desktop   string `json:"desktop"`
}

// ListProducts returns the full catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		mapError(w, r, err)
		return
	}

	views := make([]productView, len(products))
	for i, p := range products {
		views[i] = h.toProductView(p)
	}
	respondJSON(w, r, http.StatusOK, views)
}

// GetProduct returns a single product by ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, h.toProductView(*p))
}

func (h *Handler) toProductView(p product.Product) productView {
	return productView{
		ID:             p.ID,
		Name:           p.Name,
		BasePrice:      p.BasePrice,
		DiscountPrice:  p.DiscountPrice,
		DiscountActive: p.DiscountActive,
		EffectivePrice: pricing.EffectivePrice(p),
		Category:       p.Category,
		Image: imageView{
			Thumbnail: h.imageURL(p.Image.Thumbnail),
			Mobile:    h.imageURL(p.Image.Mobile),
			Tablet:    h.imageURL(p.Image.Tablet),
			Desktop:   h.imageURL(p.Image.Desktop),
		},
	}
}

// imageURL prepends the configured base URL to relative image paths.
func (h *Handler) imageURL(path string) string {
	if path == "" || h.imageBaseURL == "" || strings.HasPrefix(path, "http") {
		return path
	}
	return strings.TrimSuffix(h.imageBaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}
