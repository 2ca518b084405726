package repository

import (
	"context"
	"database/sql"
	"sort"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
)

const (
	orderColumns = `id, buyer_id, seller_id, total_price, status, payment_method, is_paid, created_at, updated_at`

	lockProductsQuery = `
		SELECT id, seller_id, price, stock
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`

	decrementStockQuery = `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2`

	restoreStockQuery = `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1`

	insertOrderQuery = `
		INSERT INTO orders (buyer_id, seller_id, total_price, status, payment_method, is_paid)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	insertOrderItemQuery = `
		INSERT INTO order_items (order_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	selectItemsQuery = `
		SELECT id, order_id, product_id, quantity, price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id`

	updateOrderStateQuery = `
		UPDATE orders
		SET status = $2, is_paid = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	statisticsQuery = `
		SELECT status, COUNT(*), COALESCE(SUM(total_price) FILTER (WHERE is_paid), 0)
		FROM orders
		GROUP BY status`
)

// PostgresOrderRepository implements OrderRepository using PostgreSQL.
type PostgresOrderRepository struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewPostgresOrderRepository creates a new PostgreSQL order repository.
func NewPostgresOrderRepository(db *sql.DB) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		db:     db,
		logger: logging.NewLogger("order-repository"),
	}
}

// Create stores a new order. The product rows are locked in id order, the
// order is priced against them, and every stock decrement is guarded so a
// concurrent order can never drive stock below zero.
func (r *PostgresOrderRepository) Create(ctx context.Context, order *models.Order, price PricingFunc) (*models.Order, error) {
	r.logger.Debug("Creating order", logging.Fields{
		"buyer_id":   order.BuyerID,
		"seller_id":  order.SellerID,
		"item_count": len(order.Items),
	})

	created := order.Clone()

	err := withTx(ctx, r.db, r.logger, func(tx *sql.Tx) error {
		products, err := lockProducts(ctx, tx, productIDs(created.Items))
		if err != nil {
			return err
		}

		if err := price(created, products); err != nil {
			return err
		}

		for _, item := range sortedByProduct(created.Items) {
			res, err := tx.ExecContext(ctx, decrementStockQuery, item.ProductID, item.Quantity)
			if err != nil {
				if isCheckViolation(err) {
					return errors.NewInsufficientStockError(item.ProductID, products[item.ProductID].Stock, item.Quantity)
				}
				return errors.Internal(err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return errors.Internal(err)
			}
			if affected == 0 {
				return errors.NewInsufficientStockError(item.ProductID, products[item.ProductID].Stock, item.Quantity)
			}
		}

		err = tx.QueryRowContext(ctx, insertOrderQuery,
			created.BuyerID,
			created.SellerID,
			created.TotalPrice,
			created.Status,
			created.PaymentMethod,
			created.IsPaid,
		).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
		if err != nil {
			return errors.Internal(err)
		}

		for i := range created.Items {
			created.Items[i].OrderID = created.ID
			err := tx.QueryRowContext(ctx, insertOrderItemQuery,
				created.ID,
				created.Items[i].ProductID,
				created.Items[i].Quantity,
				created.Items[i].Price,
			).Scan(&created.Items[i].ID)
			if err != nil {
				return errors.Internal(err)
			}
		}

		return nil
	})
	if err != nil {
		if errors.KindOf(err) == errors.KindInternal {
			r.logger.Error("Failed to create order", logging.Fields{
				"buyer_id": order.BuyerID,
				"error":    err.Error(),
			})
		}
		return nil, err
	}

	r.logger.Info("Order created successfully", logging.Fields{
		"order_id": created.ID,
		"buyer_id": created.BuyerID,
		"total":    created.TotalPrice.String(),
	})

	return created, nil
}

// GetByID retrieves an order with its items.
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	r.logger.Debug("Fetching order by ID", logging.Fields{"order_id": id})

	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("order", id)
	}
	if err != nil {
		r.logger.Error("Failed to fetch order", logging.Fields{
			"order_id": id,
			"error":    err.Error(),
		})
		return nil, errors.Internal(err)
	}

	if err := attachItems(ctx, r.db, []*models.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *PostgresOrderRepository) ListByBuyer(ctx context.Context, buyerID int64) ([]*models.Order, error) {
	return r.list(ctx, `WHERE buyer_id = $1`, buyerID)
}

func (r *PostgresOrderRepository) ListBySeller(ctx context.Context, sellerID int64) ([]*models.Order, error) {
	return r.list(ctx, `WHERE seller_id = $1`, sellerID)
}

func (r *PostgresOrderRepository) ListByStatus(ctx context.Context, status models.OrderStatus) ([]*models.Order, error) {
	return r.list(ctx, `WHERE status = $1`, status)
}

func (r *PostgresOrderRepository) list(ctx context.Context, where string, args ...interface{}) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ` + where + ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Internal(err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Internal(err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal(err)
	}

	if err := attachItems(ctx, r.db, orders); err != nil {
		return nil, err
	}

	r.logger.Debug("Orders listed", logging.Fields{"count": len(orders)})
	return orders, nil
}

// Statistics counts orders per status and sums the value of paid orders.
func (r *PostgresOrderRepository) Statistics(ctx context.Context) (*models.OrderStatistics, error) {
	rows, err := r.db.QueryContext(ctx, statisticsQuery)
	if err != nil {
		return nil, errors.Internal(err)
	}
	defer rows.Close()

	stats := newStatistics()
	for rows.Next() {
		var status models.OrderStatus
		var count int
		var paid decimal.Decimal
		if err := rows.Scan(&status, &count, &paid); err != nil {
			return nil, errors.Internal(err)
		}
		stats.StatusCounts[status] = count
		stats.TotalOrders += count
		stats.TotalPaidValue = stats.TotalPaidValue.Add(paid)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal(err)
	}
	return stats, nil
}

// Update locks the order row, applies mutate and writes back status and
// is_paid. Stock is restored when the order moves into cancelled.
func (r *PostgresOrderRepository) Update(ctx context.Context, id int64, mutate OrderMutation) (*models.Order, error) {
	var updated *models.Order

	err := withTx(ctx, r.db, r.logger, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
		order, err := scanOrder(row)
		if err == sql.ErrNoRows {
			return errors.NewNotFoundError("order", id)
		}
		if err != nil {
			return errors.Internal(err)
		}
		if err := attachItems(ctx, tx, []*models.Order{order}); err != nil {
			return err
		}

		previous := order.Status
		if err := mutate(order); err != nil {
			return err
		}

		if order.Status == models.OrderStatusCancelled && previous != models.OrderStatusCancelled {
			for _, item := range sortedByProduct(order.Items) {
				if _, err := tx.ExecContext(ctx, restoreStockQuery, item.ProductID, item.Quantity); err != nil {
					return errors.Internal(err)
				}
			}
		}

		if err := tx.QueryRowContext(ctx, updateOrderStateQuery, order.ID, order.Status, order.IsPaid).Scan(&order.UpdatedAt); err != nil {
			return errors.Internal(err)
		}

		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Order updated", logging.Fields{
		"order_id": updated.ID,
		"status":   updated.Status,
		"is_paid":  updated.IsPaid,
	})
	return updated, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var order models.Order
	err := row.Scan(
		&order.ID,
		&order.BuyerID,
		&order.SellerID,
		&order.TotalPrice,
		&order.Status,
		&order.PaymentMethod,
		&order.IsPaid,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.Items = make([]models.OrderItem, 0)
	return &order, nil
}

func attachItems(ctx context.Context, q querier, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[int64]*models.Order, len(orders))
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := q.QueryContext(ctx, selectItemsQuery, pq.Array(ids))
	if err != nil {
		return errors.Internal(err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price); err != nil {
			return errors.Internal(err)
		}
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Internal(err)
	}
	return nil
}

func lockProducts(ctx context.Context, q querier, ids []int64) (map[int64]*models.Product, error) {
	rows, err := q.QueryContext(ctx, lockProductsQuery, pq.Array(ids))
	if err != nil {
		return nil, errors.Internal(err)
	}
	defer rows.Close()

	products := make(map[int64]*models.Product, len(ids))
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.SellerID, &p.Price, &p.Stock); err != nil {
			return nil, errors.Internal(err)
		}
		products[p.ID] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal(err)
	}
	return products, nil
}

func productIDs(items []models.OrderItem) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// sortedByProduct returns the items in ascending product id order, the
// order in which product rows are locked and written.
func sortedByProduct(items []models.OrderItem) []models.OrderItem {
	sorted := append([]models.OrderItem(nil), items...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })
	return sorted
}

func newStatistics() *models.OrderStatistics {
	stats := &models.OrderStatistics{
		StatusCounts:   make(map[models.OrderStatus]int, len(models.AllOrderStatuses)),
		TotalPaidValue: decimal.Zero,
	}
	for _, s := range models.AllOrderStatuses {
		stats.StatusCounts[s] = 0
	}
	return stats
}
