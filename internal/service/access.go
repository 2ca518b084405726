package service

import (
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
)

func requireBuyer(p models.Principal) (models.Buyer, error) {
	buyer, ok := p.(models.Buyer)
	if !ok {
		return models.Buyer{}, errors.NewForbiddenError("only buyers can perform this action")
	}
	return buyer, nil
}

func requireSeller(p models.Principal) (models.Seller, error) {
	seller, ok := p.(models.Seller)
	if !ok {
		return models.Seller{}, errors.NewForbiddenError("only sellers can perform this action")
	}
	return seller, nil
}

func requireAdmin(p models.Principal) error {
	if _, ok := p.(models.Admin); !ok {
		return errors.NewForbiddenError("only admins can perform this action")
	}
	return nil
}

// canAccessOrder reports whether p is a party to the order or acts with
// admin rights.
func canAccessOrder(p models.Principal, order *models.Order) bool {
	switch v := p.(type) {
	case models.Admin, models.System:
		return true
	case models.Buyer:
		return order.BuyerID == v.ID
	case models.Seller:
		return order.SellerID == v.SellerID
	}
	return false
}

// canCancelOrder allows the owning buyer, admins and the service itself.
func canCancelOrder(p models.Principal, order *models.Order) bool {
	switch v := p.(type) {
	case models.Admin, models.System:
		return true
	case models.Buyer:
		return order.BuyerID == v.ID
	}
	return false
}

// canManageProduct reports whether p may change the product: the owning
// seller or an admin.
func canManageProduct(p models.Principal, product *models.Product) bool {
	switch v := p.(type) {
	case models.Admin:
		return true
	case models.Seller:
		return product.SellerID == v.SellerID
	}
	return false
}
