package clients

import (
	"context"
	"net/http"
	"net/url"

	"github.com/joao-fontenele/product-service/internal/domain"
)

type SupplierClient struct {
	jsonClient
}

func NewSupplierClient(baseURL string, client *http.Client) *SupplierClient {
	return &SupplierClient{jsonClient: newJSONClient("supplier service", baseURL, client)}
}

// GetSupplier fetches GET /api/v1/suppliers/{id}.
func (c *SupplierClient) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	var supplier domain.Supplier
	if err := c.get(ctx, "/api/v1/suppliers/"+url.PathEscape(id), &supplier); err != nil {
		return nil, err
	}
	return &supplier, nil
}
