package products

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/joao-fontenele/product-service/internal/domain"
)

type fakeSuppliers struct {
	suppliers map[string]domain.Supplier
	err       error
	calls     int
}

func (f *fakeSuppliers) GetSupplier(_ context.Context, id string) (*domain.Supplier, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.suppliers[id]
	if !ok {
		return nil, errors.New("supplier service returned status 404")
	}
	return &s, nil
}

type fakeOrders struct {
	mu      sync.Mutex
	pending map[uuid.UUID]bool
	err     error
	calls   int
}

func (f *fakeOrders) HasPendingOrders(_ context.Context, productID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.pending[productID], nil
}

var errNoOrderService = errors.New("order service returned status 503")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	repo      *MemoryRepository
	suppliers *fakeSuppliers
	orders    *fakeOrders
	service   *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:      NewMemoryRepository(),
		suppliers: &fakeSuppliers{suppliers: map[string]domain.Supplier{}},
		orders:    &fakeOrders{pending: map[uuid.UUID]bool{}},
	}
	f.service = NewService(f.repo, f.suppliers, f.orders, discardLogger())
	return f
}

func (f *fixture) seed(p domain.Product) domain.Product {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.SKU == "" {
		p.SKU = "SKU-" + p.ID.String()[:8]
	}
	if p.Name == "" {
		p.Name = "Widget"
	}
	if err := f.repo.Create(context.Background(), &p); err != nil {
		panic(err)
	}
	return p
}
