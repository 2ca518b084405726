package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/repository"
)

// RatingService lets buyers rate products from their completed orders.
type RatingService struct {
	ratings   repository.RatingRepository
	orders    repository.OrderRepository
	publisher EventPublisher
	config    *config.Config
	logger    *logging.Logger
}

func NewRatingService(
	ratings repository.RatingRepository,
	orders repository.OrderRepository,
	publisher EventPublisher,
	cfg *config.Config,
) *RatingService {
	return &RatingService{
		ratings:   ratings,
		orders:    orders,
		publisher: publisher,
		config:    cfg,
		logger:    logging.NewLogger("rating-service"),
	}
}

// CreateRating checks, in order: the order belongs to the buyer, the order
// is completed, the product is part of the order, and the buyer has not
// rated it for this order yet.
func (s *RatingService) CreateRating(ctx context.Context, p models.Principal, req *models.CreateRatingRequest) (*models.Rating, error) {
	buyer, err := requireBuyer(p)
	if err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, s.fail("create", err)
	}

	order, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, s.fail("create", err)
	}
	if order.BuyerID != buyer.ID {
		return nil, s.fail("create", errors.NewNotFoundError("order", req.OrderID))
	}
	if !order.Status.IsCompleted() {
		return nil, s.fail("create", errors.NewInvalidStateError("only completed orders can be rated"))
	}
	if !order.HasProduct(req.ProductID) {
		return nil, s.fail("create", errors.NewInvalidInputError("product_id", "product is not part of this order"))
	}

	existing, err := s.ratings.Find(ctx, buyer.ID, req.ProductID, req.OrderID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, s.fail("create", err)
	}
	if existing != nil {
		return nil, s.fail("create", errors.NewConflictError("product already rated for this order"))
	}

	rating, err := s.ratings.Create(ctx, &models.Rating{
		BuyerID:   buyer.ID,
		ProductID: req.ProductID,
		OrderID:   req.OrderID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		return nil, s.fail("create", err)
	}
	metrics.RatingsTotal.WithLabelValues("create", "ok").Inc()

	s.logger.WithContext(ctx).Info("Rating created", logging.Fields{
		"rating_id":  rating.ID,
		"product_id": rating.ProductID,
		"order_id":   rating.OrderID,
	})

	if s.publisher != nil && s.config.Features.EnableOrderEvents {
		if err := s.publisher.PublishRatingCreated(ctx, rating); err != nil {
			s.logger.Error("Failed to publish rating created event", logging.Fields{
				"rating_id": rating.ID,
				"error":     err.Error(),
			})
		}
	}
	return rating, nil
}

// UpdateRating changes the supplied fields of a rating owned by the buyer.
func (s *RatingService) UpdateRating(ctx context.Context, p models.Principal, id int64, req *models.UpdateRatingRequest) (*models.Rating, error) {
	buyer, err := requireBuyer(p)
	if err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, s.fail("update", err)
	}

	rating, err := s.ownedRating(ctx, buyer, id)
	if err != nil {
		return nil, s.fail("update", err)
	}

	if req.Rating != nil {
		if err := ValidateRatingValue(*req.Rating); err != nil {
			return nil, s.fail("update", err)
		}
		rating.Rating = *req.Rating
	}
	if req.Comment != nil {
		rating.Comment = req.Comment
	}

	updated, err := s.ratings.Update(ctx, rating)
	if err != nil {
		return nil, s.fail("update", err)
	}
	metrics.RatingsTotal.WithLabelValues("update", "ok").Inc()
	return updated, nil
}

func (s *RatingService) DeleteRating(ctx context.Context, p models.Principal, id int64) error {
	buyer, err := requireBuyer(p)
	if err != nil {
		return err
	}
	if err := s.ratings.Delete(ctx, id, buyer.ID); err != nil {
		return s.fail("delete", err)
	}
	metrics.RatingsTotal.WithLabelValues("delete", "ok").Inc()
	return nil
}

func (s *RatingService) GetRating(ctx context.Context, id int64) (*models.Rating, error) {
	return s.ratings.GetByID(ctx, id)
}

// ListProductRatings returns a product's ratings and their average,
// rounded to two places.
func (s *RatingService) ListProductRatings(ctx context.Context, productID int64) (*models.ProductRatings, error) {
	ratings, err := s.ratings.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	result := &models.ProductRatings{
		ProductID: productID,
		Average:   decimal.Zero,
		Count:     len(ratings),
		Ratings:   ratings,
	}
	if len(ratings) > 0 {
		sum := 0
		for _, r := range ratings {
			sum += r.Rating
		}
		result.Average = decimal.NewFromInt(int64(sum)).
			DivRound(decimal.NewFromInt(int64(len(ratings))), 2)
	}
	return result, nil
}

func (s *RatingService) ListBuyerRatings(ctx context.Context, p models.Principal) ([]*models.Rating, error) {
	buyer, err := requireBuyer(p)
	if err != nil {
		return nil, err
	}
	return s.ratings.ListByBuyer(ctx, buyer.ID)
}

// ownedRating hides ratings of other buyers behind NotFound.
func (s *RatingService) ownedRating(ctx context.Context, buyer models.Buyer, id int64) (*models.Rating, error) {
	rating, err := s.ratings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rating.BuyerID != buyer.ID {
		return nil, errors.NewNotFoundError("rating", id)
	}
	return rating, nil
}

func (s *RatingService) fail(operation string, err error) error {
	metrics.RatingsTotal.WithLabelValues(operation, string(errors.KindOf(err))).Inc()
	return err
}
