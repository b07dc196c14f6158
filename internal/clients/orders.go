package clients

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type OrderClient struct {
	jsonClient
}

func NewOrderClient(baseURL string, client *http.Client) *OrderClient {
	return &OrderClient{jsonClient: newJSONClient("order service", baseURL, client)}
}

// HasPendingOrders asks whether any order still pending references the
// product. The order service answers with a bare JSON boolean.
func (c *OrderClient) HasPendingOrders(ctx context.Context, productID uuid.UUID) (bool, error) {
	var pending bool
	if err := c.get(ctx, "/api/v1/orders/products/"+productID.String()+"/pending", &pending); err != nil {
		return false, err
	}
	return pending, nil
}
