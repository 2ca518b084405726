package service

import (
	"fmt"

	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
)

// PriceOrder prices every line at the catalog price of its locked product
// row and sets the order total. It is run by the repository inside the
// order transaction, so the stock it sees is the stock that will be
// decremented.
func PriceOrder(order *models.Order, products map[int64]*models.Product) error {
	for i := range order.Items {
		item := &order.Items[i]

		product, ok := products[item.ProductID]
		if !ok {
			return errors.NewNotFoundError("product", item.ProductID)
		}
		if product.SellerID != order.SellerID {
			return errors.NewValidationError(
				fmt.Sprintf("items[%d].product_id", i),
				fmt.Sprintf("product %d is not sold by seller %d", product.ID, order.SellerID),
			)
		}
		if product.Stock < item.Quantity {
			return errors.NewInsufficientStockError(product.ID, product.Stock, item.Quantity)
		}

		item.Price = product.Price
	}

	order.CalculateTotal()
	return nil
}
