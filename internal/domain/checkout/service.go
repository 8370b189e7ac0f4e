package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nilecart/storefront/internal/domain/cart"
	"github.com/nilecart/storefront/internal/domain/currency"
	"github.com/nilecart/storefront/internal/domain/order"
	"github.com/nilecart/storefront/internal/domain/pricing"
	"github.com/nilecart/storefront/internal/domain/product"
	"github.com/nilecart/storefront/internal/domain/promo"
)

// totalTolerance is the maximum allowed deviation between the declared and
// the server-recomputed total before checkout is rejected.
var totalTolerance = decimal.RequireFromString("0.01")

// ProductUnavailableError indicates a cart line references a product that no
// longer exists in the catalog.
type ProductUnavailableError struct {
	ProductID string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is no longer available", e.ProductID)
}

// Service orchestrates checkout: it recomputes authoritative totals,
// revalidates the applied promo, converts currency, dispatches to exactly one
// payment backend, and assembles the final order.
type Service struct {
	carts     cart.Store
	products  product.Repository
	validator promo.Validator
	promos    promo.Repository
	orders    order.Repository
	converter Converter
	card      CardGateway
	paypal    PayPalGateway
	applePay  ApplePayGateway
	events    Publisher
}

// NewService creates a checkout Service with all gateway dependencies.
func NewService(
	carts cart.Store,
	products product.Repository,
	validator promo.Validator,
	promos promo.Repository,
	orders order.Repository,
	converter Converter,
	card CardGateway,
	paypal PayPalGateway,
	applePay ApplePayGateway,
	events Publisher,
) *Service {
	return &Service{
		carts:     carts,
		products:  products,
		validator: validator,
		promos:    promos,
		orders:    orders,
		converter: converter,
		card:      card,
		paypal:    paypal,
		applePay:  applePay,
		events:    events,
	}
}

// Request is a checkout dispatch request. DeclaredTotal is the total the
// client displayed to the customer, in the display currency; it is checked
// against the server recomputation, never trusted.
type Request struct {
	CartID          string
	Method          order.PaymentMethod
	Customer        order.Customer
	DisplayCurrency string
	DeclaredTotal   decimal.Decimal
}

// CompletionRequest finalizes a provider button flow (PayPal, Apple Pay).
type CompletionRequest struct {
	CartID          string
	Customer        order.Customer
	DisplayCurrency string
	DeclaredTotal   decimal.Decimal

	// ProviderOrderID identifies the provider-side PayPal order to capture.
	ProviderOrderID string
	// Payload is the Apple Pay payment token.
	Payload []byte
}

// draft is the server-assembled order draft all payment paths share.
type draft struct {
	cart           *cart.Cart
	items          []order.Item
	subtotal       decimal.Decimal
	discount       decimal.Decimal
	total          decimal.Decimal
	promoCode      string
	conversion     *currency.Conversion
	chargeAmount   decimal.Decimal
	chargeCurrency string
}

// Checkout dispatches the cart to a payment backend. A zero total always
// routes to the free-order path regardless of the requested method.
func (s *Service) Checkout(ctx context.Context, req Request) (*Outcome, error) {
	d, err := s.buildDraft(ctx, req.CartID, req.DisplayCurrency, req.DeclaredTotal)
	if err != nil {
		return nil, err
	}

	if d.total.IsZero() {
		return s.finalizeFree(ctx, d, req.Customer)
	}

	switch req.Method {
	case order.MethodCard:
		return s.dispatchCard(ctx, d, req.Customer)
	case order.MethodPayPal:
		return s.openSession(ctx, d, order.MethodPayPal)
	case order.MethodApplePay:
		return s.openSession(ctx, d, order.MethodApplePay)
	default:
		return nil, ErrUnknownMethod
	}
}

// CompletePayPal captures the provider-side PayPal order and finalizes the
// storefront order.
func (s *Service) CompletePayPal(ctx context.Context, req CompletionRequest) (*Outcome, error) {
	d, err := s.buildDraft(ctx, req.CartID, req.DisplayCurrency, req.DeclaredTotal)
	if err != nil {
		return nil, err
	}

	capture, err := s.paypal.CaptureOrder(ctx, req.ProviderOrderID)
	if err != nil {
		return nil, &GatewayError{Provider: "paypal", Err: err}
	}
	if err := verifyCapture(capture, d); err != nil {
		return nil, &GatewayError{Provider: "paypal", Err: err}
	}

	o := s.assemble(d, req.Customer, order.MethodPayPal, order.StatusCompleted, capture.ProviderRef)
	if err := s.finalize(ctx, o, d.cart); err != nil {
		return nil, err
	}

	return &Outcome{Kind: OutcomeCompleted, OrderID: o.ID, ProviderRef: o.ProviderRef}, nil
}

// CompleteApplePay authorizes the Apple Pay payment token and finalizes the
// storefront order.
func (s *Service) CompleteApplePay(ctx context.Context, req CompletionRequest) (*Outcome, error) {
	d, err := s.buildDraft(ctx, req.CartID, req.DisplayCurrency, req.DeclaredTotal)
	if err != nil {
		return nil, err
	}

	capture, err := s.applePay.Authorize(ctx, req.Payload, d.chargeAmount, d.chargeCurrency)
	if err != nil {
		return nil, &GatewayError{Provider: "apple_pay", Err: err}
	}
	if err := verifyCapture(capture, d); err != nil {
		return nil, &GatewayError{Provider: "apple_pay", Err: err}
	}

	o := s.assemble(d, req.Customer, order.MethodApplePay, order.StatusCompleted, capture.ProviderRef)
	if err := s.finalize(ctx, o, d.cart); err != nil {
		return nil, err
	}

	return &Outcome{Kind: OutcomeCompleted, OrderID: o.ID, ProviderRef: o.ProviderRef}, nil
}

// buildDraft recomputes the authoritative totals for the cart: unit prices
// from the live catalog, promo revalidated against the recomputed subtotal,
// declared total checked within tolerance, then currency conversion.
func (s *Service) buildDraft(ctx context.Context, cartID, displayCurrency string, declared decimal.Decimal) (*draft, error) {
	c, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if c.Empty() {
		return nil, ErrEmptyCart
	}

	ids := make([]string, len(c.Lines))
	for i, l := range c.Lines {
		ids[i] = l.ProductID
	}
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	items := make([]order.Item, len(c.Lines))
	subtotal := decimal.Zero
	for i, l := range c.Lines {
		p, ok := byID[l.ProductID]
		if !ok {
			return nil, &ProductUnavailableError{ProductID: l.ProductID}
		}
		unit := pricing.EffectivePrice(p)
		items[i] = order.Item{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: unit,
			Quantity:  l.Quantity,
		}
		subtotal = subtotal.Add(unit.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	subtotal = subtotal.Round(2)

	// Revalidate the applied promo against the recomputed subtotal. A
	// rejection here clears the promo, same as cart reapplication.
	discount := decimal.Zero
	promoCode := ""
	if c.Promo != nil {
		v, err := s.validator.Validate(ctx, c.Promo.Code, subtotal)
		if err != nil {
			zctx.From(ctx).Info("promo dropped at checkout",
				zap.String("code", c.Promo.Code),
				zap.String("reason", err.Error()),
			)
		} else {
			discount = v.DiscountAmount
			promoCode = v.Code
		}
	}

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	total = total.Round(2)

	if declared.Sub(total).Abs().GreaterThan(totalTolerance) {
		return nil, &TotalMismatchError{Declared: declared, Computed: total}
	}

	d := &draft{
		cart:           c,
		items:          items,
		subtotal:       subtotal,
		discount:       discount,
		total:          total,
		promoCode:      promoCode,
		chargeAmount:   total,
		chargeCurrency: displayCurrency,
	}

	if conv := s.converter.Convert(ctx, total, displayCurrency); conv != nil {
		d.conversion = conv
		d.chargeAmount = conv.Amount
		d.chargeCurrency = conv.Currency
	}

	return d, nil
}

// finalizeFree creates a completed zero-total order directly, bypassing all
// payment gateways.
func (s *Service) finalizeFree(ctx context.Context, d *draft, customer order.Customer) (*Outcome, error) {
	o := s.assemble(d, customer, order.MethodFree, order.StatusCompleted, "")
	o.FreeOrder = true
	if err := s.finalize(ctx, o, d.cart); err != nil {
		return nil, err
	}
	return &Outcome{Kind: OutcomeFree, OrderID: o.ID}, nil
}

// dispatchCard creates a pending order and a hosted payment page, then
// records the session so a later method switch replaces it.
func (s *Service) dispatchCard(ctx context.Context, d *draft, customer order.Customer) (*Outcome, error) {
	o := s.assemble(d, customer, order.MethodCard, order.StatusPending, "")

	hosted, err := s.card.CreateHostedPayment(ctx, o)
	if err != nil {
		return nil, &GatewayError{Provider: "card", Err: err}
	}
	o.ProviderRef = hosted.ProviderRef

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	// The return redirect from the hosted page is out of band, so the promo
	// use is consumed here, at pending-order creation.
	if o.PromoCode != "" {
		if err := s.promos.IncrementUses(ctx, o.PromoCode); err != nil {
			zctx.From(ctx).Error("failed to increment promo uses",
				zap.String("code", o.PromoCode),
				zap.Error(err),
			)
		}
	}

	s.replaceSession(ctx, d.cart, &cart.Session{
		Method:      string(order.MethodCard),
		OrderID:     o.ID,
		ProviderRef: hosted.ProviderRef,
		Amount:      d.chargeAmount,
		Currency:    d.chargeCurrency,
		CreatedAt:   time.Now().UTC(),
	})

	return &Outcome{
		Kind:        OutcomeRedirect,
		OrderID:     o.ID,
		PaymentURL:  hosted.PaymentURL,
		ProviderRef: hosted.ProviderRef,
	}, nil
}

// openSession records a provider button-flow session on the cart and returns
// the charge the client must authorize. No order exists yet; the matching
// completion endpoint creates it.
func (s *Service) openSession(ctx context.Context, d *draft, method order.PaymentMethod) (*Outcome, error) {
	s.replaceSession(ctx, d.cart, &cart.Session{
		Method:    string(method),
		Amount:    d.chargeAmount,
		Currency:  d.chargeCurrency,
		CreatedAt: time.Now().UTC(),
	})

	return &Outcome{
		Kind:     OutcomeSession,
		Amount:   d.chargeAmount,
		Currency: d.chargeCurrency,
	}, nil
}

// replaceSession swaps the cart's in-flight payment session wholesale,
// discarding any session from a previously selected method.
func (s *Service) replaceSession(ctx context.Context, c *cart.Cart, sess *cart.Session) {
	c.Session = sess
	err := s.carts.Save(ctx, c)
	if errors.Is(err, cart.ErrConcurrentUpdate) {
		if fresh, getErr := s.carts.Get(ctx, c.ID); getErr == nil {
			fresh.Session = sess
			err = s.carts.Save(ctx, fresh)
		}
	}
	if err != nil {
		zctx.From(ctx).Warn("failed to record payment session", zap.Error(err))
	}
}

// assemble builds the order record from the draft.
func (s *Service) assemble(d *draft, customer order.Customer, method order.PaymentMethod, status order.Status, providerRef string) *order.Order {
	return &order.Order{
		ID:          uuid.New().String(),
		Items:       d.items,
		Customer:    customer,
		Subtotal:    d.subtotal,
		Discount:    d.discount,
		Total:       d.total,
		Method:      method,
		PromoCode:   d.promoCode,
		Conversion:  d.conversion,
		ProviderRef: providerRef,
		Status:      status,
	}
}

// finalize persists the order, consumes the promo, destroys the cart, and
// publishes the completion event. Promo consumption and event publishing are
// best effort once the order exists.
func (s *Service) finalize(ctx context.Context, o *order.Order, c *cart.Cart) error {
	if err := s.orders.Create(ctx, o); err != nil {
		return errors.Wrap(err, "create order")
	}

	lg := zctx.From(ctx)
	if o.PromoCode != "" {
		if err := s.promos.IncrementUses(ctx, o.PromoCode); err != nil {
			lg.Error("failed to increment promo uses",
				zap.String("code", o.PromoCode),
				zap.Error(err),
			)
		}
	}

	if err := s.carts.Delete(ctx, c.ID); err != nil {
		lg.Warn("failed to delete cart after order", zap.String("cart_id", c.ID), zap.Error(err))
	}

	if s.events != nil {
		if err := s.events.OrderCompleted(ctx, o); err != nil {
			lg.Warn("failed to publish order event", zap.String("order_id", o.ID), zap.Error(err))
		}
	}

	return nil
}

// verifyCapture checks the provider charged exactly what the server computed.
func verifyCapture(c *Capture, d *draft) error {
	if c.Currency != "" && c.Currency != d.chargeCurrency {
		return errors.Errorf("captured currency %s, expected %s", c.Currency, d.chargeCurrency)
	}
	if c.Amount.Sub(d.chargeAmount).Abs().GreaterThan(totalTolerance) {
		return errors.Errorf("captured amount %s, expected %s", c.Amount, d.chargeAmount)
	}
	return nil
}
