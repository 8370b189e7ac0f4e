package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/nilecart/storefront/internal/domain/product"
	"github.com/nilecart/storefront/internal/domain/promo"
)

// saveAttempts bounds the optimistic-concurrency retry loop for mutations.
const saveAttempts = 2

// Service implements cart operations. Every subtotal-affecting mutation runs
// promo reapplication before the cart is saved, so the applied discount is
// never stale relative to the lines.
type Service struct {
	store     Store
	products  product.Repository
	validator promo.Validator
	reapplier *promo.Reapplier
}

// NewService creates a cart Service.
func NewService(store Store, products product.Repository, validator promo.Validator) *Service {
	return &Service{
		store:     store,
		products:  products,
		validator: validator,
		reapplier: promo.NewReapplier(validator),
	}
}

// Create starts a new empty cart.
func (s *Service) Create(ctx context.Context) (*Cart, error) {
	c := &Cart{
		ID:        uuid.New().String(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// Get returns the cart by ID.
func (s *Service) Get(ctx context.Context, id string) (*Cart, error) {
	return s.store.Get(ctx, id)
}

// AddItem adds quantity of the product to the cart, snapshotting the
// product's current prices. Adding an already-present product increases its
// quantity; the original snapshot is kept.
func (s *Service) AddItem(ctx context.Context, id, productID string, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}

	return s.mutate(ctx, id, func(c *Cart) error {
		if i := c.lineIndex(productID); i >= 0 {
			c.Lines[i].Quantity += quantity
			return nil
		}
		c.Lines = append(c.Lines, Line{
			ProductID:      p.ID,
			Name:           p.Name,
			Quantity:       quantity,
			BasePrice:      p.BasePrice,
			DiscountPrice:  p.DiscountPrice,
			DiscountActive: p.DiscountActive,
		})
		return nil
	})
}

// UpdateQuantity sets the quantity of an existing line.
func (s *Service) UpdateQuantity(ctx context.Context, id, productID string, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return s.mutate(ctx, id, func(c *Cart) error {
		i := c.lineIndex(productID)
		if i < 0 {
			return ErrLineNotFound
		}
		c.Lines[i].Quantity = quantity
		return nil
	})
}

// RemoveItem deletes a line from the cart.
func (s *Service) RemoveItem(ctx context.Context, id, productID string) (*Cart, error) {
	return s.mutate(ctx, id, func(c *Cart) error {
		i := c.lineIndex(productID)
		if i < 0 {
			return ErrLineNotFound
		}
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
		return nil
	})
}

// ApplyPromo validates the code against the current subtotal and applies it.
// Rejections are returned to the caller for inline display; they never affect
// the cart's lines.
func (s *Service) ApplyPromo(ctx context.Context, id, code string) (*Cart, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	v, err := s.validator.Validate(ctx, code, c.Subtotal())
	if err != nil {
		return nil, err
	}

	c.Promo = v
	if err := s.store.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// ClearPromo removes any applied promo from the cart.
func (s *Service) ClearPromo(ctx context.Context, id string) (*Cart, error) {
	return s.mutateNoReapply(ctx, id, func(c *Cart) error {
		c.Promo = nil
		return nil
	})
}

// mutate loads the cart, applies fn, reapplies the promo against the new
// subtotal, and saves. Reapplication runs strictly after the mutation, in the
// same request, so it never validates against a stale subtotal. A lost
// compare-and-set race is retried once from a fresh read.
func (s *Service) mutate(ctx context.Context, id string, fn func(*Cart) error) (*Cart, error) {
	var lastErr error
	for range saveAttempts {
		c, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := fn(c); err != nil {
			return nil, err
		}

		if c.Promo != nil {
			revalidated, kept := s.reapplier.Reapply(ctx, c.Promo, c.Subtotal(), c.Empty())
			if kept {
				c.Promo = revalidated
			} else {
				c.Promo = nil
			}
		}

		err = s.store.Save(ctx, c)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrConcurrentUpdate) {
			return nil, errors.Wrap(err, "save cart")
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *Service) mutateNoReapply(ctx context.Context, id string, fn func(*Cart) error) (*Cart, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}
