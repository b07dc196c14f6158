package products

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/joao-fontenele/product-service/internal/domain"
)

// MemoryRepository is an in-process Repository. Update holds a per-product
// lock while mutate runs, mirroring the row lock of the Postgres store.
type MemoryRepository struct {
	mu       sync.Mutex
	products map[uuid.UUID]domain.Product
	locks    map[uuid.UUID]*sync.Mutex
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		products: make(map[uuid.UUID]domain.Product),
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

func (r *MemoryRepository) Create(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[p.ID]; exists {
		return fmt.Errorf("product %s already exists", p.ID)
	}
	if r.skuTaken(p.SKU, p.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateSKU, p.SKU)
	}
	r.products[p.ID] = clone(*p)
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := clone(p)
	return &out, nil
}

func (r *MemoryRepository) List(_ context.Context) ([]domain.Product, error) {
	return r.filter(func(domain.Product) bool { return true }), nil
}

func (r *MemoryRepository) ListBySupplier(_ context.Context, supplierID uuid.UUID) ([]domain.Product, error) {
	return r.filter(func(p domain.Product) bool {
		return p.SupplierID != nil && *p.SupplierID == supplierID
	}), nil
}

func (r *MemoryRepository) Update(ctx context.Context, id uuid.UUID, mutate MutateFunc) (*domain.Product, error) {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	changed, err := mutate(ctx, current)
	if err != nil {
		return nil, err
	}
	if !changed {
		return current, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if r.skuTaken(current.SKU, id) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSKU, current.SKU)
	}
	r.products[id] = clone(*current)

	out := clone(*current)
	return &out, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.products, id)
	return nil
}

func (r *MemoryRepository) lockFor(id uuid.UUID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[id] = lock
	}
	return lock
}

func (r *MemoryRepository) filter(keep func(domain.Product) bool) []domain.Product {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []domain.Product{}
	for _, p := range r.products {
		if keep(p) {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// skuTaken must be called with r.mu held.
func (r *MemoryRepository) skuTaken(sku string, except uuid.UUID) bool {
	for id, p := range r.products {
		if id != except && p.SKU == sku {
			return true
		}
	}
	return false
}

func clone(p domain.Product) domain.Product {
	if p.SupplierID != nil {
		id := *p.SupplierID
		p.SupplierID = &id
	}
	return p
}
