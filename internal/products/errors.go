package products

import "errors"

var (
	ErrNotFound            = errors.New("product not found")
	ErrInvalidSupplier     = errors.New("invalid supplier")
	ErrAlreadyDiscontinued = errors.New("product is already discontinued")
	ErrHasPendingOrders    = errors.New("product has pending orders")
	ErrInvalidQuantity     = errors.New("quantity must be positive")
	ErrInvalidProduct      = errors.New("invalid product")
	ErrDuplicateSKU        = errors.New("sku already exists")
)

var businessErrors = []error{
	ErrNotFound,
	ErrInvalidSupplier,
	ErrAlreadyDiscontinued,
	ErrHasPendingOrders,
	ErrInvalidQuantity,
	ErrInvalidProduct,
	ErrDuplicateSKU,
}

// IsBusinessRule reports whether err is a rejection by a product rule rather
// than an infrastructure failure. A joined error qualifies only when every
// part does.
func IsBusinessRule(err error) bool {
	if err == nil {
		return false
	}

	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		parts := joined.Unwrap()
		if len(parts) == 0 {
			return false
		}
		for _, part := range parts {
			if !IsBusinessRule(part) {
				return false
			}
		}
		return true
	}

	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
