package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
)

const productColumns = `id, seller_id, category_id, name, description, price, stock, discount, created_at, updated_at`

// PostgresCatalogRepository implements CatalogRepository using PostgreSQL.
type PostgresCatalogRepository struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewPostgresCatalogRepository creates a new PostgreSQL catalog repository.
func NewPostgresCatalogRepository(db *sql.DB) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{
		db:     db,
		logger: logging.NewLogger("catalog-repository"),
	}
}

func (r *PostgresCatalogRepository) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	product, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("product", id)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}
	return product, nil
}

// ListProducts returns products matching every filter that is set.
func (r *PostgresCatalogRepository) ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error) {
	conditions := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.CategoryID > 0 {
		add("category_id = $%d", filter.CategoryID)
	}
	if filter.SellerID > 0 {
		add("seller_id = $%d", filter.SellerID)
	}
	if filter.PriceMin != nil {
		add("price >= $%d", *filter.PriceMin)
	}
	if filter.PriceMax != nil {
		add("price <= $%d", *filter.PriceMax)
	}
	if name := strings.TrimSpace(filter.Name); name != "" {
		add("name ILIKE $%d", "%"+escapeLike(name)+"%")
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Internal(err)
	}
	defer rows.Close()

	products := make([]*models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Internal(err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal(err)
	}
	return products, nil
}

func (r *PostgresCatalogRepository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	created := *product
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO products (seller_id, category_id, name, description, price, stock, discount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		product.SellerID, product.CategoryID, product.Name, product.Description,
		product.Price, product.Stock, product.Discount,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, errors.NewValidationError("category_id", "category or seller does not exist")
		}
		return nil, errors.Internal(err)
	}

	r.logger.Info("Product created", logging.Fields{
		"product_id": created.ID,
		"seller_id":  created.SellerID,
	})
	return &created, nil
}

// UpdateProduct locks the product row so that concurrent stock changes
// from orders are not lost, applies mutate and writes the row back.
func (r *PostgresCatalogRepository) UpdateProduct(ctx context.Context, id int64, mutate ProductMutation) (*models.Product, error) {
	var updated *models.Product

	err := withTx(ctx, r.db, r.logger, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
		product, err := scanProduct(row)
		if err == sql.ErrNoRows {
			return errors.NewNotFoundError("product", id)
		}
		if err != nil {
			return errors.Internal(err)
		}

		if err := mutate(product); err != nil {
			return err
		}

		err = tx.QueryRowContext(ctx, `
			UPDATE products
			SET category_id = $2, name = $3, description = $4, price = $5, stock = $6, discount = $7, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at`,
			id, product.CategoryID, product.Name, product.Description,
			product.Price, product.Stock, product.Discount,
		).Scan(&product.UpdatedAt)
		if err != nil {
			if isForeignKeyViolation(err) {
				return errors.NewValidationError("category_id", "category does not exist")
			}
			return errors.Internal(err)
		}

		updated = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PostgresCatalogRepository) IncrementStock(ctx context.Context, id int64, quantity int) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, restoreStockQuery+` RETURNING `+productColumns, id, quantity)
	product, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("product", id)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}
	return product, nil
}

func (r *PostgresCatalogRepository) DecrementStock(ctx context.Context, id int64, quantity int) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, decrementStockQuery+` RETURNING `+productColumns, id, quantity)
	product, err := scanProduct(row)
	if err == sql.ErrNoRows {
		current, getErr := r.GetProduct(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, errors.NewInsufficientStockError(id, current.Stock, quantity)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}
	return product, nil
}

func (r *PostgresCatalogRepository) GetSeller(ctx context.Context, id int64) (*models.SellerProfile, error) {
	var s models.SellerProfile
	err := r.db.QueryRowContext(ctx, `SELECT id, user_id, shop_name FROM sellers WHERE id = $1`, id).
		Scan(&s.ID, &s.UserID, &s.ShopName)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("seller", id)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}
	return &s, nil
}

const categorySelect = `
	SELECT c.id, c.name, c.created_at, c.updated_at,
	       (SELECT COUNT(*) FROM products p WHERE p.category_id = c.id)
	FROM categories c`

func (r *PostgresCatalogRepository) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx, categorySelect+` WHERE c.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("category", id)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}
	return c, nil
}

// GetCategoryByName looks a category up case-insensitively.
func (r *PostgresCatalogRepository) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx, categorySelect+` WHERE LOWER(c.name) = LOWER($1)`, name))
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Internal(err)
	}
	return c, nil
}

func (r *PostgresCatalogRepository) ListCategories(ctx context.Context) ([]*models.Category, error) {
	rows, err := r.db.QueryContext(ctx, categorySelect+` ORDER BY c.name`)
	if err != nil {
		return nil, errors.Internal(err)
	}
	defer rows.Close()

	categories := make([]*models.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, errors.Internal(err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal(err)
	}
	return categories, nil
}

func (r *PostgresCatalogRepository) CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	created := *category
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO categories (name) VALUES ($1) RETURNING id, created_at, updated_at`,
		category.Name,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errors.NewConflictError(fmt.Sprintf("category %q already exists", category.Name))
		}
		return nil, errors.Internal(err)
	}
	return &created, nil
}

func (r *PostgresCatalogRepository) UpdateCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	updated := *category
	err := r.db.QueryRowContext(ctx,
		`UPDATE categories SET name = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
		category.ID, category.Name,
	).Scan(&updated.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("category", category.ID)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errors.NewConflictError(fmt.Sprintf("category %q already exists", category.Name))
		}
		return nil, errors.Internal(err)
	}
	return &updated, nil
}

func (r *PostgresCatalogRepository) DeleteCategory(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return errors.NewValidationError("category_id", "category still has products")
		}
		return errors.Internal(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Internal(err)
	}
	if affected == 0 {
		return errors.NewNotFoundError("category", id)
	}
	return nil
}

func (r *PostgresCatalogRepository) CountProductsInCategory(ctx context.Context, id int64) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE category_id = $1`, id).Scan(&count); err != nil {
		return 0, errors.Internal(err)
	}
	return count, nil
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	err := row.Scan(
		&p.ID,
		&p.SellerID,
		&p.CategoryID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Stock,
		&p.Discount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanCategory(row rowScanner) (*models.Category, error) {
	var c models.Category
	if err := row.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt, &c.ProductCount); err != nil {
		return nil, err
	}
	return &c, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
