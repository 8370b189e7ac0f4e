package checkout

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilecart/storefront/internal/domain/cart"
	"github.com/nilecart/storefront/internal/domain/currency"
	"github.com/nilecart/storefront/internal/domain/order"
	"github.com/nilecart/storefront/internal/domain/product"
	"github.com/nilecart/storefront/internal/domain/promo"
)

// --- Mock implementations ---

type memCartStore struct {
	carts   map[string]*cart.Cart
	deleted []string
}

func newMemCartStore(carts ...*cart.Cart) *memCartStore {
	m := &memCartStore{carts: make(map[string]*cart.Cart)}
	for _, c := range carts {
		m.carts[c.ID] = c
	}
	return m
}

func (m *memCartStore) Get(_ context.Context, id string) (*cart.Cart, error) {
	c, ok := m.carts[id]
	if !ok {
		return nil, cart.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCartStore) Save(_ context.Context, c *cart.Cart) error {
	m.carts[c.ID] = c
	return nil
}

func (m *memCartStore) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.carts, id)
	return nil
}

type mockProductRepo struct {
	byID map[string]product.Product
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) { return nil, nil }

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockPromoRepo struct {
	codes      map[string]*promo.Code
	increments []string
}

func (m *mockPromoRepo) FindByCode(_ context.Context, code string) (*promo.Code, error) {
	c, ok := m.codes[code]
	if !ok {
		return nil, promo.ErrNotFound
	}
	return c, nil
}

func (m *mockPromoRepo) IncrementUses(_ context.Context, code string) error {
	m.increments = append(m.increments, code)
	return nil
}

type mockOrderRepo struct {
	orders []*order.Order
	err    error
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	if m.err != nil {
		return m.err
	}
	m.orders = append(m.orders, o)
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, _ string) (*order.Order, error) {
	return nil, errors.New("not implemented")
}

type mockConverter struct {
	conversion *currency.Conversion
}

func (m *mockConverter) Convert(_ context.Context, _ decimal.Decimal, _ string) *currency.Conversion {
	return m.conversion
}

type mockCardGateway struct {
	hosted *HostedPayment
	err    error
	calls  int
}

func (m *mockCardGateway) CreateHostedPayment(_ context.Context, _ *order.Order) (*HostedPayment, error) {
	m.calls++
	return m.hosted, m.err
}

type mockPayPalGateway struct {
	capture  *Capture
	err      error
	captured string
}

func (m *mockPayPalGateway) CaptureOrder(_ context.Context, providerOrderID string) (*Capture, error) {
	m.captured = providerOrderID
	return m.capture, m.err
}

type mockApplePayGateway struct {
	capture *Capture
	err     error
	amount  decimal.Decimal
}

func (m *mockApplePayGateway) Authorize(_ context.Context, _ []byte, amount decimal.Decimal, _ string) (*Capture, error) {
	m.amount = amount
	return m.capture, m.err
}

type mockPublisher struct {
	published []*order.Order
}

func (m *mockPublisher) OrderCompleted(_ context.Context, o *order.Order) error {
	m.published = append(m.published, o)
	return nil
}

// --- Helpers ---

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

type fixture struct {
	svc    *Service
	carts  *memCartStore
	promos *mockPromoRepo
	orders *mockOrderRepo
	card   *mockCardGateway
	paypal *mockPayPalGateway
	apple  *mockApplePayGateway
	events *mockPublisher
}

func newFixture(c *cart.Cart, opts ...func(*fixture)) *fixture {
	f := &fixture{
		carts: newMemCartStore(c),
		promos: &mockPromoRepo{codes: map[string]*promo.Code{
			"SAVE10":  {Code: "SAVE10", DiscountType: promo.DiscountPercentage, Value: dec("10"), Active: true},
			"FLAT100": {Code: "FLAT100", DiscountType: promo.DiscountFixed, Value: dec("100"), Active: true},
			"MIN400":  {Code: "MIN400", DiscountType: promo.DiscountPercentage, Value: dec("10"), Active: true, MinOrderAmount: decPtr("400")},
		}},
		orders: &mockOrderRepo{},
		card:   &mockCardGateway{hosted: &HostedPayment{PaymentURL: "https://pay.example/p/123", ProviderRef: "pay-123"}},
		paypal: &mockPayPalGateway{},
		apple:  &mockApplePayGateway{},
		events: &mockPublisher{},
	}
	for _, opt := range opts {
		opt(f)
	}
	products := &mockProductRepo{byID: map[string]product.Product{
		"p1": {ID: "p1", Name: "Widget", BasePrice: dec("100.00")},
		"p2": {ID: "p2", Name: "Gadget", BasePrice: dec("50.00")},
	}}
	f.svc = NewService(
		f.carts,
		products,
		promo.NewRepoValidator(f.promos),
		f.promos,
		f.orders,
		&mockConverter{},
		f.card,
		f.paypal,
		f.apple,
		f.events,
	)
	return f
}

func testCart(lines ...cart.Line) *cart.Cart {
	return &cart.Cart{ID: "cart-1", Lines: lines}
}

func line(productID string, qty int, base string) cart.Line {
	return cart.Line{ProductID: productID, Quantity: qty, BasePrice: dec(base)}
}

// --- Tests ---

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(testCart())

	_, err := f.svc.Checkout(context.Background(), Request{
		CartID: "cart-1", Method: order.MethodCard, DisplayCurrency: "USD",
	})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckout_UnknownMethod(t *testing.T) {
	f := newFixture(testCart(line("p1", 1, "100.00")))

	_, err := f.svc.Checkout(context.Background(), Request{
		CartID: "cart-1", Method: "bitcoin", DisplayCurrency: "USD", DeclaredTotal: dec("100.00"),
	})
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestCheckout_ZeroTotalRoutesToFreePath(t *testing.T) {
	// Subtotal 50 with a FIXED 100 code: discount capped at 50, total 0.
	// The free path wins even though a paid method was requested.
	c := testCart(line("p2", 1, "50.00"))
	c.Promo = &promo.Validation{Code: "FLAT100"}
	f := newFixture(c)

	out, err := f.svc.Checkout(context.Background(), Request{
		CartID: "cart-1", Method: order.MethodCard, DisplayCurrency: "USD", DeclaredTotal: decimal.Zero,
	})

	require.NoError(t, err)
	assert.Equal(t, OutcomeFree, out.Kind)
	assert.Zero(t, f.card.calls, "no gateway call for a free order")

	require.Len(t, f.orders.orders, 1)
	o := f.orders.orders[0]
	assert.True(t, o.FreeOrder)
	assert.Equal(t, order.MethodFree, o.Method)
	assert.Equal(t, order.StatusCompleted, o.Status)
	assert.True(t, o.Total.IsZero())
	assert.True(t, dec("50.00").Equal(o.Discount))
	assert.Equal(t, []string{"FLAT100"}, f.promos.increments)
	assert.Equal(t, []string{"cart-1"}, f.carts.deleted)
	assert.Len(t, f.events.published, 1)
}

func TestCheckout_CardCreatesPendingOrderAndRedirects(t *testing.T) {
	c := testCart(line("p1", 2, "100.00"))
	f := newFixture(c)

	out, err := f.svc.Checkout(context.Background(), Request{
		CartID: "cart-1", Method: order.MethodCard, DisplayCurrency: "USD", DeclaredTotal: dec("200.00"),
	})

	require.NoError(t, err)
	assert.Equal(t, OutcomeRedirect, out.Kind)
	assert.Equal(t, "https://pay.example/p/123", out.PaymentURL)

	require.Len(t, f.orders.orders, 1)
	o := f.orders.orders[0]
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, "pay-123", o.ProviderRef)
	assert.True(t, dec("200.00").Equal(o.Total))

	// Pending card orders keep the cart; no promo was involved.
	assert.Empty(t, f.carts.deleted)
	saved, _ := f.carts.Get(context.Background(), "cart-1")
	require.NotNil(t, saved.Session)
	assert.Equal(t, "card", saved.Session.Method)
	assert.Equal(t, o.ID, saved.Session.OrderID)
}

func TestCheckout_CardConsumesPromoAtPendingOrder(t *testing.T) {
	c := testCart(line("p1", 2, "100.00"))
	c.Promo = &promo.Validation{Code: "SAVE10", DiscountAmount: dec("20")}
	f := newFixture(c)

	out, err := f.svc.Checkout(context.Background(), Request{
		CartID: "cart-1", Method: order.MethodCard, DisplayCurrency: "USD", DeclaredTotal: dec("180.00"),
	})

	require.NoError(t, err)
	assert.Equal(t, OutcomeRedirect, out.Kind)
	o := f.orders.orders[0]
	assert.Equal(t, "SAVE10", o.PromoCode)
	assert.Equal(t, []string{"SAVE10"}, f.promos.increments)
}

func TestCheckout_CardGatewayFailure(t *testing.T) {
	f := newFixture(testCart(line("p1", 1, "100.00")))
	f.card.hosted = nil
	f.card.err = errors.New("gateway timeout")

	_, err := f.svc.Checkout(context.Background(), Request{
		CartID: "cart-1", Method: order.MethodCard, DisplayCurrency: "USD", DeclaredTotal: dec("100.00"),
	})

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "card", gwErr.Provider)
	assert.Empty(t, f.orders.orders, "no order persisted on gateway failure")
}

func TestCheckout_TotalMismatchRejected(t *testing.T) {
	f := newFixture(testCart(line("p1", 2, "100.00")))

	_, err := f.svc.Checkout(context.Background(), Request{
		CartID: "cart-1", Method: order.MethodCard, DisplayCurrency: "USD", DeclaredTotal: dec("150.00"),
	})

	var tmErr *TotalMismatchError
	require.ErrorAs(t, err, &tmErr)
	assert.True(t, dec("200.00").Equal(tmErr.Computed))
	assert.Empty(t, f.orders.orders)
}

func TestCheckout_TotalWithinToleranceAccepted(t *testing.T) {
	f := newFixture(testCart(line("p1", 2, "100.00")))

	_, err := f.svc.Checkout(context.Background(), Request{
		CartID: "cart-1", Method: order.MethodCard, DisplayCurrency: "USD", DeclaredTotal: dec("200.01"),
	})
	assert.NoError(t, err)
}

func TestCheckout_RecomputesFromCatalogNotSnapshot(t *testing.T) {
	// Snapshot says 80 but the catalog price is 100: the server total wins.
	f := newFixture(testCart(line("p1", 1, "80.00")))

	_, err := f.svc.Checkout(context.Background(), Request{
		CartID: "cart-1", Method: order.MethodCard, DisplayCurrency: "USD", DeclaredTotal: dec("80.00"),
	})

	var tmErr *TotalMismatchError
	require.ErrorAs(t, err, &tmErr)
	assert.True(t, dec("100.00").Equal(tmErr.Computed))
}

func TestCheckout_PromoDroppedWhenBelowMinimumAtCheckout(t *testing.T) {
	c := testCart(line("p1", 3, "100.00")) // subtotal 300, below MIN400
	c.Promo = &promo.Validation{Code: "MIN400", DiscountAmount: dec("50")}
	f := newFixture(c)

	out, err := f.svc.Checkout(context.Background(), Request{
		CartID: "cart-1", Method: order.MethodCard, DisplayCurrency: "USD", DeclaredTotal: dec("300.00"),
	})

	require.NoError(t, err)
	assert.Equal(t, OutcomeRedirect, out.Kind)
	o := f.orders.orders[0]
	assert.True(t, o.Discount.IsZero())
	assert.Empty(t, o.PromoCode)
}

func TestCheckout_PayPalOpensSession(t *testing.T) {
	f := newFixture(testCart(line("p1", 1, "100.00")))

	out, err := f.svc.Checkout(context.Background(), Request{
		CartID: "cart-1", Method: order.MethodPayPal, DisplayCurrency: "USD", DeclaredTotal: dec("100.00"),
	})

	require.NoError(t, err)
	assert.Equal(t, OutcomeSession, out.Kind)
	assert.True(t, dec("100.00").Equal(out.Amount))
	assert.Equal(t, "USD", out.Currency)
	assert.Empty(t, f.orders.orders, "no order exists until the provider flow completes")

	saved, _ := f.carts.Get(context.Background(), "cart-1")
	require.NotNil(t, saved.Session)
	assert.Equal(t, "paypal", saved.Session.Method)
}

func TestCheckout_SwitchingMethodReplacesSession(t *testing.T) {
	f := newFixture(testCart(line("p1", 1, "100.00")))
	ctx := context.Background()
	req := Request{CartID: "cart-1", DisplayCurrency: "USD", DeclaredTotal: dec("100.00")}

	req.Method = order.MethodPayPal
	_, err := f.svc.Checkout(ctx, req)
	require.NoError(t, err)

	req.Method = order.MethodApplePay
	_, err = f.svc.Checkout(ctx, req)
	require.NoError(t, err)

	saved, _ := f.carts.Get(ctx, "cart-1")
	require.NotNil(t, saved.Session)
	assert.Equal(t, "apple_pay", saved.Session.Method, "prior session must be discarded wholesale")
}

func TestCompletePayPal_FinalizesOrder(t *testing.T) {
	c := testCart(line("p1", 2, "100.00"))
	c.Promo = &promo.Validation{Code: "SAVE10"}
	f := newFixture(c)
	f.paypal.capture = &Capture{ProviderRef: "pp-cap-1", Amount: dec("180.00"), Currency: "USD"}

	out, err := f.svc.CompletePayPal(context.Background(), CompletionRequest{
		CartID: "cart-1", DisplayCurrency: "USD", DeclaredTotal: dec("180.00"),
		ProviderOrderID: "pp-order-9",
	})

	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, out.Kind)
	assert.Equal(t, "pp-cap-1", out.ProviderRef)
	assert.Equal(t, "pp-order-9", f.paypal.captured)

	require.Len(t, f.orders.orders, 1)
	o := f.orders.orders[0]
	assert.Equal(t, order.StatusCompleted, o.Status)
	assert.Equal(t, order.MethodPayPal, o.Method)
	assert.True(t, dec("20.00").Equal(o.Discount))
	assert.Equal(t, "SAVE10", o.PromoCode)
	assert.Equal(t, []string{"SAVE10"}, f.promos.increments, "promo consumed exactly once, at finalization")
	assert.Equal(t, []string{"cart-1"}, f.carts.deleted)
	assert.Len(t, f.events.published, 1)
}

func TestCompletePayPal_CaptureFailure(t *testing.T) {
	f := newFixture(testCart(line("p1", 1, "100.00")))
	f.paypal.err = errors.New("capture declined")

	_, err := f.svc.CompletePayPal(context.Background(), CompletionRequest{
		CartID: "cart-1", DisplayCurrency: "USD", DeclaredTotal: dec("100.00"),
		ProviderOrderID: "pp-order-9",
	})

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "paypal", gwErr.Provider)
	assert.Empty(t, f.orders.orders)
	assert.Empty(t, f.promos.increments)
}

func TestCompletePayPal_CaptureAmountMismatch(t *testing.T) {
	f := newFixture(testCart(line("p1", 1, "100.00")))
	f.paypal.capture = &Capture{ProviderRef: "pp-cap-1", Amount: dec("10.00"), Currency: "USD"}

	_, err := f.svc.CompletePayPal(context.Background(), CompletionRequest{
		CartID: "cart-1", DisplayCurrency: "USD", DeclaredTotal: dec("100.00"),
		ProviderOrderID: "pp-order-9",
	})

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Empty(t, f.orders.orders)
}

func TestCompleteApplePay_AuthorizesConvertedAmount(t *testing.T) {
	c := testCart(line("p1", 1, "100.00"))
	f := newFixture(c)
	f.apple.capture = &Capture{ProviderRef: "ap-1", Amount: dec("4850.00"), Currency: "EGP"}

	// Replace the converter with one that converts USD to EGP.
	f.svc.converter = &mockConverter{conversion: &currency.Conversion{
		OriginalAmount:   dec("100.00"),
		OriginalCurrency: "USD",
		Amount:           dec("4850.00"),
		Currency:         "EGP",
		Rate:             dec("48.50"),
		LiveRate:         false,
	}}

	out, err := f.svc.CompleteApplePay(context.Background(), CompletionRequest{
		CartID: "cart-1", DisplayCurrency: "USD", DeclaredTotal: dec("100.00"),
		Payload: []byte(`{"token":"opaque"}`),
	})

	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, out.Kind)
	assert.True(t, dec("4850.00").Equal(f.apple.amount), "gateway charged the settlement amount")

	o := f.orders.orders[0]
	require.NotNil(t, o.Conversion)
	assert.Equal(t, "EGP", o.Conversion.Currency)
	assert.False(t, o.Conversion.LiveRate)
	assert.True(t, dec("100.00").Equal(o.Total), "order total stays in the display currency")
}

func TestCheckout_OrderCreateError(t *testing.T) {
	f := newFixture(testCart(line("p1", 1, "100.00")))
	f.orders.err = errors.New("db write failed")

	_, err := f.svc.Checkout(context.Background(), Request{
		CartID: "cart-1", Method: order.MethodCard, DisplayCurrency: "USD", DeclaredTotal: dec("100.00"),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
}
