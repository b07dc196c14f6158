package domain

import "github.com/google/uuid"

type Product struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	SKU          string     `json:"sku"`
	Price        float64    `json:"price"`
	Currency     string     `json:"currency"`
	Stock        int        `json:"stock"`
	Discontinued bool       `json:"discontinued"`
	SupplierID   *uuid.UUID `json:"supplier_id,omitempty"`
}

// ProductRequest carries the client-editable fields of a product.
type ProductRequest struct {
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	SKU          string     `json:"sku"`
	Price        float64    `json:"price"`
	Currency     string     `json:"currency"`
	Stock        int        `json:"stock"`
	Discontinued bool       `json:"discontinued"`
	SupplierID   *uuid.UUID `json:"supplier_id,omitempty"`
}

// Supplier is the projection returned by the supplier service. It is never
// persisted locally.
type Supplier struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}
