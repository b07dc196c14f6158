package products

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/joao-fontenele/product-service/internal/domain"
)

// MutateFunc runs inside the repository's unit of work with the freshly read
// product. Returning false leaves the stored row untouched.
type MutateFunc func(ctx context.Context, p *domain.Product) (bool, error)

type Repository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
	ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]domain.Product, error)
	// Update reads, mutates and writes the product atomically with respect
	// to other updates of the same id.
	Update(ctx context.Context, id uuid.UUID, mutate MutateFunc) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type SupplierLookup interface {
	GetSupplier(ctx context.Context, id string) (*domain.Supplier, error)
}

type PendingOrderChecker interface {
	HasPendingOrders(ctx context.Context, productID uuid.UUID) (bool, error)
}

const defaultCurrency = "EUR"

// maxStock matches the width of the stock column.
const maxStock = math.MaxInt32

type Service struct {
	repo      Repository
	suppliers SupplierLookup
	orders    PendingOrderChecker
	logger    *slog.Logger
}

func NewService(repo Repository, suppliers SupplierLookup, orders PendingOrderChecker, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		suppliers: suppliers,
		orders:    orders,
		logger:    logger,
	}
}

// CreateProduct persists a new product. When a supplier is referenced it
// must exist and be active.
func (s *Service) CreateProduct(ctx context.Context, req domain.ProductRequest) (*domain.Product, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if req.SupplierID != nil {
		supplier, err := s.suppliers.GetSupplier(ctx, req.SupplierID.String())
		if err != nil {
			s.logger.Warn("supplier lookup failed", "error", err, "supplier_id", req.SupplierID.String())
			return nil, fmt.Errorf("%w: %s", ErrInvalidSupplier, req.SupplierID)
		}
		if !supplier.Active {
			return nil, fmt.Errorf("%w: supplier %s is not active", ErrInvalidSupplier, req.SupplierID)
		}
	}

	product := &domain.Product{
		ID:           uuid.New(),
		Name:         req.Name,
		Description:  req.Description,
		SKU:          req.SKU,
		Price:        req.Price,
		Currency:     currencyOrDefault(req.Currency),
		Stock:        req.Stock,
		Discontinued: req.Discontinued,
		SupplierID:   req.SupplierID,
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("product created", "product_id", product.ID.String(), "sku", product.SKU)
	return product, nil
}

func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.List(ctx)
}

func (s *Service) ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]domain.Product, error) {
	return s.repo.ListBySupplier(ctx, supplierID)
}

// UpdateProduct replaces the editable fields. Supplier and discontinued
// state are not changed here.
func (s *Service) UpdateProduct(ctx context.Context, id uuid.UUID, req domain.ProductRequest) (*domain.Product, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	return s.repo.Update(ctx, id, func(_ context.Context, p *domain.Product) (bool, error) {
		p.Name = req.Name
		p.Description = req.Description
		p.SKU = req.SKU
		p.Price = req.Price
		p.Stock = req.Stock
		p.Currency = currencyOrDefault(req.Currency)
		return true, nil
	})
}

func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("product deleted", "product_id", id.String())
	return nil
}

// RemoveStock reports false without changing anything when the product is
// discontinued or holds less than quantity.
func (s *Service) RemoveStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, ErrInvalidQuantity
	}

	var removed bool
	_, err := s.repo.Update(ctx, id, func(_ context.Context, p *domain.Product) (bool, error) {
		if p.Discontinued || p.Stock < quantity {
			return false, nil
		}
		p.Stock -= quantity
		removed = true
		return true, nil
	})
	if err != nil {
		return false, err
	}

	return removed, nil
}

// AddStock reports false without changing anything when the product is
// discontinued.
func (s *Service) AddStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, ErrInvalidQuantity
	}

	var added bool
	_, err := s.repo.Update(ctx, id, func(_ context.Context, p *domain.Product) (bool, error) {
		if p.Discontinued {
			return false, nil
		}
		if quantity > maxStock-p.Stock {
			return false, fmt.Errorf("%w: stock of %s would exceed %d", ErrInvalidQuantity, p.ID, maxStock)
		}
		p.Stock += quantity
		added = true
		return true, nil
	})
	if err != nil {
		return false, err
	}

	return added, nil
}

// Discontinue marks the product discontinued once the order service confirms
// nothing pending references it. Calling it twice fails.
func (s *Service) Discontinue(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.repo.Update(ctx, id, func(ctx context.Context, p *domain.Product) (bool, error) {
		if err := s.checkTransition(ctx, p); err != nil {
			return false, err
		}
		p.Discontinued = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("product discontinued", "product_id", id.String())
	return product, nil
}

// ReactivateFromSupplierEvent applies a supplier deactivation to every
// product of that supplier, each in its own unit of work. Products pass the
// same guards as Discontinue and end with discontinued = false. It returns
// how many products were written; guard failures are joined.
func (s *Service) ReactivateFromSupplierEvent(ctx context.Context, supplierID uuid.UUID) (int, error) {
	products, err := s.repo.ListBySupplier(ctx, supplierID)
	if err != nil {
		return 0, fmt.Errorf("list products of supplier %s: %w", supplierID, err)
	}
	if len(products) == 0 {
		return 0, fmt.Errorf("%w: no products for supplier %s", ErrNotFound, supplierID)
	}

	var (
		updated int
		errs    []error
	)
	for _, product := range products {
		_, err := s.repo.Update(ctx, product.ID, func(ctx context.Context, p *domain.Product) (bool, error) {
			if err := s.checkTransition(ctx, p); err != nil {
				return false, err
			}
			p.Discontinued = false
			return true, nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("product %s: %w", product.ID, err))
			continue
		}
		updated++
	}

	s.logger.Info("supplier deactivation applied",
		"supplier_id", supplierID.String(),
		"products", len(products),
		"updated", updated,
	)

	return updated, errors.Join(errs...)
}

func (s *Service) checkTransition(ctx context.Context, p *domain.Product) error {
	if p.Discontinued {
		return fmt.Errorf("%w: %s", ErrAlreadyDiscontinued, p.ID)
	}

	pending, err := s.orders.HasPendingOrders(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("check pending orders for %s: %w", p.ID, err)
	}
	if pending {
		return fmt.Errorf("%w: %s", ErrHasPendingOrders, p.ID)
	}

	return nil
}

func validateRequest(req domain.ProductRequest) error {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case strings.TrimSpace(req.SKU) == "":
		return fmt.Errorf("%w: sku is required", ErrInvalidProduct)
	case req.Price < 0:
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	case req.Stock < 0:
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidProduct)
	case req.Stock > maxStock:
		return fmt.Errorf("%w: stock must not exceed %d", ErrInvalidProduct, maxStock)
	}
	return nil
}

func currencyOrDefault(currency string) string {
	if currency == "" {
		return defaultCurrency
	}
	return strings.ToUpper(currency)
}
