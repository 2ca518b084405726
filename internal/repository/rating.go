package repository

import (
	"context"
	"database/sql"

	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
)

const ratingColumns = `id, buyer_id, product_id, order_id, rating, comment, created_at, updated_at`

// PostgresRatingRepository implements RatingRepository using PostgreSQL.
type PostgresRatingRepository struct {
	db     *sql.DB
	logger *logging.Logger
}

func NewPostgresRatingRepository(db *sql.DB) *PostgresRatingRepository {
	return &PostgresRatingRepository{
		db:     db,
		logger: logging.NewLogger("rating-repository"),
	}
}

// Create inserts a rating. The (buyer, product, order) unique index turns a
// concurrent duplicate into a conflict.
func (r *PostgresRatingRepository) Create(ctx context.Context, rating *models.Rating) (*models.Rating, error) {
	created := *rating
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO ratings (buyer_id, product_id, order_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		rating.BuyerID, rating.ProductID, rating.OrderID, rating.Rating, nullString(rating.Comment),
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errors.NewConflictError("product already rated for this order")
		}
		r.logger.Error("Failed to create rating", logging.Fields{
			"buyer_id": rating.BuyerID,
			"order_id": rating.OrderID,
			"error":    err.Error(),
		})
		return nil, errors.Internal(err)
	}
	return &created, nil
}

func (r *PostgresRatingRepository) GetByID(ctx context.Context, id int64) (*models.Rating, error) {
	rating, err := scanRating(r.db.QueryRowContext(ctx, `SELECT `+ratingColumns+` FROM ratings WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("rating", id)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}
	return rating, nil
}

func (r *PostgresRatingRepository) Find(ctx context.Context, buyerID, productID, orderID int64) (*models.Rating, error) {
	rating, err := scanRating(r.db.QueryRowContext(ctx,
		`SELECT `+ratingColumns+` FROM ratings WHERE buyer_id = $1 AND product_id = $2 AND order_id = $3`,
		buyerID, productID, orderID,
	))
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Internal(err)
	}
	return rating, nil
}

func (r *PostgresRatingRepository) Update(ctx context.Context, rating *models.Rating) (*models.Rating, error) {
	updated := *rating
	err := r.db.QueryRowContext(ctx, `
		UPDATE ratings
		SET rating = $3, comment = $4, updated_at = NOW()
		WHERE id = $1 AND buyer_id = $2
		RETURNING updated_at`,
		rating.ID, rating.BuyerID, rating.Rating, nullString(rating.Comment),
	).Scan(&updated.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("rating", rating.ID)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}
	return &updated, nil
}

// Delete removes a rating owned by buyerID.
func (r *PostgresRatingRepository) Delete(ctx context.Context, id, buyerID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ratings WHERE id = $1 AND buyer_id = $2`, id, buyerID)
	if err != nil {
		return errors.Internal(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Internal(err)
	}
	if affected == 0 {
		return errors.NewNotFoundError("rating", id)
	}
	return nil
}

func (r *PostgresRatingRepository) ListByProduct(ctx context.Context, productID int64) ([]*models.Rating, error) {
	return r.list(ctx, `WHERE product_id = $1`, productID)
}

func (r *PostgresRatingRepository) ListByBuyer(ctx context.Context, buyerID int64) ([]*models.Rating, error) {
	return r.list(ctx, `WHERE buyer_id = $1`, buyerID)
}

func (r *PostgresRatingRepository) list(ctx context.Context, where string, arg int64) ([]*models.Rating, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+ratingColumns+` FROM ratings `+where+` ORDER BY created_at DESC, id DESC`, arg)
	if err != nil {
		return nil, errors.Internal(err)
	}
	defer rows.Close()

	ratings := make([]*models.Rating, 0)
	for rows.Next() {
		rating, err := scanRating(rows)
		if err != nil {
			return nil, errors.Internal(err)
		}
		ratings = append(ratings, rating)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal(err)
	}
	return ratings, nil
}

func scanRating(row rowScanner) (*models.Rating, error) {
	var rating models.Rating
	var comment sql.NullString
	err := row.Scan(
		&rating.ID,
		&rating.BuyerID,
		&rating.ProductID,
		&rating.OrderID,
		&rating.Rating,
		&comment,
		&rating.CreatedAt,
		&rating.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if comment.Valid {
		rating.Comment = &comment.String
	}
	return &rating, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
