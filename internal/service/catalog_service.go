package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/repository"
)

// CatalogService manages products and categories.
type CatalogService struct {
	catalog repository.CatalogRepository
	logger  *logging.Logger
}

func NewCatalogService(catalog repository.CatalogRepository) *CatalogService {
	return &CatalogService{
		catalog: catalog,
		logger:  logging.NewLogger("catalog-service"),
	}
}

// CreateProduct adds a product. Sellers always create for their own shop;
// admins name the shop with seller_id.
func (s *CatalogService) CreateProduct(ctx context.Context, p models.Principal, req *models.CreateProductRequest) (*models.Product, error) {
	var sellerID int64
	switch v := p.(type) {
	case models.Seller:
		sellerID = v.SellerID
	case models.Admin:
		if req.SellerID <= 0 {
			return nil, errors.NewValidationError("seller_id", "seller_id is required")
		}
		if _, err := s.catalog.GetSeller(ctx, req.SellerID); err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return nil, errors.NewValidationError("seller_id", "seller does not exist")
			}
			return nil, err
		}
		sellerID = req.SellerID
	default:
		return nil, errors.NewForbiddenError("only sellers and admins can create products")
	}

	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := ValidateProductPrice(req.Price); err != nil {
		return nil, err
	}
	if err := s.requireCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}

	product, err := s.catalog.CreateProduct(ctx, &models.Product{
		SellerID:    sellerID,
		CategoryID:  req.CategoryID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Discount:    req.Discount,
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Info("Product created", logging.Fields{
		"product_id": product.ID,
		"seller_id":  product.SellerID,
	})
	return product, nil
}

// UpdateProduct changes the supplied fields of a product. The change is
// applied to the locked row, so stock is only written when the request
// sets it.
func (s *CatalogService) UpdateProduct(ctx context.Context, p models.Principal, id int64, req *models.UpdateProductRequest) (*models.Product, error) {
	if _, ok := p.(models.Buyer); ok {
		return nil, errors.NewForbiddenError("you do not own this product")
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.Price != nil {
		if err := ValidateProductPrice(*req.Price); err != nil {
			return nil, err
		}
	}
	if req.CategoryID != nil {
		if err := s.requireCategory(ctx, *req.CategoryID); err != nil {
			return nil, err
		}
	}

	product, err := s.catalog.UpdateProduct(ctx, id, func(product *models.Product) error {
		if !canManageProduct(p, product) {
			return errors.NewForbiddenError("you do not own this product")
		}
		if req.CategoryID != nil {
			product.CategoryID = *req.CategoryID
		}
		if req.Name != nil {
			product.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			product.Description = *req.Description
		}
		if req.Price != nil {
			product.Price = *req.Price
		}
		if req.Stock != nil {
			product.Stock = *req.Stock
		}
		if req.Discount != nil {
			product.Discount = *req.Discount
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Info("Product updated", logging.Fields{
		"product_id": product.ID,
		"stock":      product.Stock,
	})
	return product, nil
}

// AdjustStock adds delta units to a product's stock, or removes them when
// delta is negative. Stock never goes below zero.
func (s *CatalogService) AdjustStock(ctx context.Context, p models.Principal, id int64, delta int) (*models.Product, error) {
	if _, err := s.ownedProduct(ctx, p, id); err != nil {
		return nil, err
	}

	switch {
	case delta > 0:
		return s.catalog.IncrementStock(ctx, id, delta)
	case delta < 0:
		return s.catalog.DecrementStock(ctx, id, -delta)
	default:
		return nil, errors.NewValidationError("delta", "delta must not be zero")
	}
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return s.catalog.GetProduct(ctx, id)
}

func (s *CatalogService) ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error) {
	if filter.PriceMin != nil && filter.PriceMax != nil && filter.PriceMin.GreaterThan(*filter.PriceMax) {
		return nil, errors.NewValidationError("price_min", "price_min must not exceed price_max")
	}
	return s.catalog.ListProducts(ctx, filter)
}

func (s *CatalogService) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	return s.catalog.GetCategory(ctx, id)
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]*models.Category, error) {
	return s.catalog.ListCategories(ctx)
}

// CreateCategory rejects names already taken, ignoring case.
func (s *CatalogService) CreateCategory(ctx context.Context, p models.Principal, req *models.CategoryRequest) (*models.Category, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := s.requireUniqueName(ctx, req.Name, 0); err != nil {
		return nil, err
	}
	return s.catalog.CreateCategory(ctx, &models.Category{Name: req.Name})
}

func (s *CatalogService) UpdateCategory(ctx context.Context, p models.Principal, id int64, req *models.CategoryRequest) (*models.Category, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	category, err := s.catalog.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireUniqueName(ctx, req.Name, id); err != nil {
		return nil, err
	}

	category.Name = req.Name
	return s.catalog.UpdateCategory(ctx, category)
}

// DeleteCategory refuses to delete a category that still has products.
func (s *CatalogService) DeleteCategory(ctx context.Context, p models.Principal, id int64) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	if _, err := s.catalog.GetCategory(ctx, id); err != nil {
		return err
	}

	count, err := s.catalog.CountProductsInCategory(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.NewValidationError("category_id",
			fmt.Sprintf("category still has %d products", count))
	}
	return s.catalog.DeleteCategory(ctx, id)
}

// ownedProduct loads a product the principal may change: the owning
// seller or an admin.
func (s *CatalogService) ownedProduct(ctx context.Context, p models.Principal, id int64) (*models.Product, error) {
	product, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManageProduct(p, product) {
		return nil, errors.NewForbiddenError("you do not own this product")
	}
	return product, nil
}

func (s *CatalogService) requireCategory(ctx context.Context, id int64) error {
	if _, err := s.catalog.GetCategory(ctx, id); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return errors.NewValidationError("category_id", "category does not exist")
		}
		return err
	}
	return nil
}

// requireUniqueName fails with Conflict when another category, other than
// exceptID, already uses name in any letter case.
func (s *CatalogService) requireUniqueName(ctx context.Context, name string, exceptID int64) error {
	existing, err := s.catalog.GetCategoryByName(ctx, name)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != exceptID {
		return errors.NewConflictError(fmt.Sprintf("category %q already exists", existing.Name))
	}
	return nil
}
