package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/product-service/internal/domain"
)

const uniqueViolation = "23505"

const productColumns = `id, name, description, sku, price, currency, stock, discontinued, supplier_id`

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		p        domain.Product
		supplier uuid.NullUUID
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.SKU, &p.Price, &p.Currency, &p.Stock, &p.Discontinued, &supplier); err != nil {
		return nil, err
	}
	if supplier.Valid {
		id := supplier.UUID
		p.SupplierID = &id
	}
	return &p, nil
}

func nullSupplier(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func mapWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateSKU, pqErr.Detail)
	}
	return err
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO catalog.products (`+productColumns+`, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`, p.ID, p.Name, p.Description, p.SKU, p.Price, p.Currency, p.Stock, p.Discontinued, nullSupplier(p.SupplierID))
	return mapWriteError(err)
}

func (r *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM catalog.products
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return p, nil
}

func (r *ProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	return r.query(ctx, `
		SELECT `+productColumns+`
		FROM catalog.products
		ORDER BY name, id
	`)
}

func (r *ProductRepository) ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]domain.Product, error) {
	return r.query(ctx, `
		SELECT `+productColumns+`
		FROM catalog.products
		WHERE supplier_id = $1
		ORDER BY name, id
	`, supplierID)
}

func (r *ProductRepository) query(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

// Update locks the row for the duration of mutate, so concurrent updates of
// the same product are applied one after another.
func (r *ProductRepository) Update(ctx context.Context, id uuid.UUID, mutate MutateFunc) (*domain.Product, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	p, err := scanProduct(tx.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM catalog.products
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}

	changed, err := mutate(ctx, p)
	if err != nil {
		return nil, err
	}
	if !changed {
		return p, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE catalog.products
		SET name = $2, description = $3, sku = $4, price = $5, currency = $6,
		    stock = $7, discontinued = $8, supplier_id = $9, updated_at = NOW()
		WHERE id = $1
	`, p.ID, p.Name, p.Description, p.SKU, p.Price, p.Currency, p.Stock, p.Discontinued, nullSupplier(p.SupplierID))
	if err != nil {
		return nil, mapWriteError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return p, nil
}

func (r *ProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM catalog.products
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return nil
}
