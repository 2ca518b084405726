package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
)

// MemoryStore keeps the whole marketplace in process memory. One mutex
// serialises every operation, which gives the same all-or-nothing
// behaviour as the PostgreSQL transactions. Used by tests and by
// DATABASE_DRIVER=memory.
type MemoryStore struct {
	mu sync.Mutex

	sellers    map[int64]*models.SellerProfile
	categories map[int64]*models.Category
	products   map[int64]*models.Product
	orders     map[int64]*models.Order
	ratings    map[int64]*models.Rating

	nextID map[string]int64
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sellers:    make(map[int64]*models.SellerProfile),
		categories: make(map[int64]*models.Category),
		products:   make(map[int64]*models.Product),
		orders:     make(map[int64]*models.Order),
		ratings:    make(map[int64]*models.Rating),
		nextID:     make(map[string]int64),
		now:        time.Now,
	}
}

// Orders returns the order repository view of the store.
func (s *MemoryStore) Orders() *MemoryOrderRepository { return &MemoryOrderRepository{s} }

// Catalog returns the catalog repository view of the store.
func (s *MemoryStore) Catalog() *MemoryCatalogRepository { return &MemoryCatalogRepository{s} }

// Ratings returns the rating repository view of the store.
func (s *MemoryStore) Ratings() *MemoryRatingRepository { return &MemoryRatingRepository{s} }

// AddSeller registers a seller. Sellers are owned by the identity domain,
// so there is no public create path.
func (s *MemoryStore) AddSeller(seller models.SellerProfile) *models.SellerProfile {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seller.ID == 0 {
		seller.ID = s.id("sellers")
	} else if seller.ID > s.nextID["sellers"] {
		s.nextID["sellers"] = seller.ID
	}
	s.sellers[seller.ID] = &seller
	out := seller
	return &out
}

func (s *MemoryStore) id(table string) int64 {
	s.nextID[table]++
	return s.nextID[table]
}

// MemoryOrderRepository implements OrderRepository on a MemoryStore.
type MemoryOrderRepository struct{ s *MemoryStore }

func (r *MemoryOrderRepository) Create(ctx context.Context, order *models.Order, price PricingFunc) (*models.Order, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	created := order.Clone()

	snapshot := make(map[int64]*models.Product, len(created.Items))
	for _, item := range created.Items {
		if p, ok := s.products[item.ProductID]; ok {
			cp := *p
			snapshot[p.ID] = &cp
		}
	}

	if err := price(created, snapshot); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Check every line before touching stock so a failure leaves no trace.
	for _, item := range created.Items {
		p, ok := s.products[item.ProductID]
		if !ok {
			return nil, errors.NewNotFoundError("product", item.ProductID)
		}
		if p.Stock < item.Quantity {
			return nil, errors.NewInsufficientStockError(p.ID, p.Stock, item.Quantity)
		}
	}

	now := s.now()
	for _, item := range created.Items {
		p := s.products[item.ProductID]
		p.Stock -= item.Quantity
		p.UpdatedAt = now
	}

	created.ID = s.id("orders")
	created.CreatedAt = now
	created.UpdatedAt = now
	for i := range created.Items {
		created.Items[i].ID = s.id("order_items")
		created.Items[i].OrderID = created.ID
	}

	s.orders[created.ID] = created.Clone()
	return created, nil
}

func (r *MemoryOrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, errors.NewNotFoundError("order", id)
	}
	return o.Clone(), nil
}

func (r *MemoryOrderRepository) ListByBuyer(ctx context.Context, buyerID int64) ([]*models.Order, error) {
	return r.list(func(o *models.Order) bool { return o.BuyerID == buyerID }), nil
}

func (r *MemoryOrderRepository) ListBySeller(ctx context.Context, sellerID int64) ([]*models.Order, error) {
	return r.list(func(o *models.Order) bool { return o.SellerID == sellerID }), nil
}

func (r *MemoryOrderRepository) ListByStatus(ctx context.Context, status models.OrderStatus) ([]*models.Order, error) {
	return r.list(func(o *models.Order) bool { return o.Status == status }), nil
}

func (r *MemoryOrderRepository) list(match func(*models.Order) bool) []*models.Order {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Order, 0)
	for _, o := range s.orders {
		if match(o) {
			out = append(out, o.Clone())
		}
	}
	// Newest first, like the SQL listing.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r *MemoryOrderRepository) Statistics(ctx context.Context) (*models.OrderStatistics, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := newStatistics()
	for _, o := range s.orders {
		stats.StatusCounts[o.Status]++
		stats.TotalOrders++
		if o.IsPaid {
			stats.TotalPaidValue = stats.TotalPaidValue.Add(o.TotalPrice)
		}
	}
	return stats, nil
}

func (r *MemoryOrderRepository) Update(ctx context.Context, id int64, mutate OrderMutation) (*models.Order, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stored, ok := s.orders[id]
	if !ok {
		return nil, errors.NewNotFoundError("order", id)
	}

	order := stored.Clone()
	previous := order.Status
	if err := mutate(order); err != nil {
		return nil, err
	}

	now := s.now()
	if order.Status == models.OrderStatusCancelled && previous != models.OrderStatusCancelled {
		for _, item := range order.Items {
			if p, ok := s.products[item.ProductID]; ok {
				p.Stock += item.Quantity
				p.UpdatedAt = now
			}
		}
	}

	stored.Status = order.Status
	stored.IsPaid = order.IsPaid
	stored.UpdatedAt = now
	return stored.Clone(), nil
}

// MemoryCatalogRepository implements CatalogRepository on a MemoryStore.
type MemoryCatalogRepository struct{ s *MemoryStore }

func (r *MemoryCatalogRepository) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, errors.NewNotFoundError("product", id)
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryCatalogRepository) ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	name := strings.ToLower(strings.TrimSpace(filter.Name))
	out := make([]*models.Product, 0)
	for _, p := range s.products {
		if filter.CategoryID > 0 && p.CategoryID != filter.CategoryID {
			continue
		}
		if filter.SellerID > 0 && p.SellerID != filter.SellerID {
			continue
		}
		if filter.PriceMin != nil && p.Price.LessThan(*filter.PriceMin) {
			continue
		}
		if filter.PriceMax != nil && p.Price.GreaterThan(*filter.PriceMax) {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(p.Name), name) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryCatalogRepository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sellers[product.SellerID]; !ok {
		return nil, errors.NewValidationError("seller_id", "category or seller does not exist")
	}
	if _, ok := s.categories[product.CategoryID]; !ok {
		return nil, errors.NewValidationError("category_id", "category or seller does not exist")
	}

	created := *product
	created.ID = s.id("products")
	created.CreatedAt = s.now()
	created.UpdatedAt = created.CreatedAt
	stored := created
	s.products[created.ID] = &stored
	return &created, nil
}

func (r *MemoryCatalogRepository) UpdateProduct(ctx context.Context, id int64, mutate ProductMutation) (*models.Product, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	existing, ok := s.products[id]
	if !ok {
		return nil, errors.NewNotFoundError("product", id)
	}

	updated := *existing
	if err := mutate(&updated); err != nil {
		return nil, err
	}
	if _, ok := s.categories[updated.CategoryID]; !ok {
		return nil, errors.NewValidationError("category_id", "category does not exist")
	}

	updated.ID = existing.ID
	updated.SellerID = existing.SellerID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now()
	stored := updated
	s.products[id] = &stored
	return &updated, nil
}

func (r *MemoryCatalogRepository) IncrementStock(ctx context.Context, id int64, quantity int) (*models.Product, error) {
	return r.adjustStock(id, quantity)
}

func (r *MemoryCatalogRepository) DecrementStock(ctx context.Context, id int64, quantity int) (*models.Product, error) {
	return r.adjustStock(id, -quantity)
}

func (r *MemoryCatalogRepository) adjustStock(id int64, delta int) (*models.Product, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, errors.NewNotFoundError("product", id)
	}
	if p.Stock+delta < 0 {
		return nil, errors.NewInsufficientStockError(id, p.Stock, -delta)
	}
	p.Stock += delta
	p.UpdatedAt = s.now()
	cp := *p
	return &cp, nil
}

func (r *MemoryCatalogRepository) GetSeller(ctx context.Context, id int64) (*models.SellerProfile, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	seller, ok := s.sellers[id]
	if !ok {
		return nil, errors.NewNotFoundError("seller", id)
	}
	cp := *seller
	return &cp, nil
}

func (r *MemoryCatalogRepository) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, errors.NewNotFoundError("category", id)
	}
	return s.categoryWithCount(c), nil
}

func (r *MemoryCatalogRepository) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if c := s.findCategory(name); c != nil {
		return s.categoryWithCount(c), nil
	}
	return nil, errors.ErrNotFound
}

func (r *MemoryCatalogRepository) ListCategories(ctx context.Context) ([]*models.Category, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, s.categoryWithCount(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryCatalogRepository) CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findCategory(category.Name) != nil {
		return nil, errors.NewConflictError(fmt.Sprintf("category %q already exists", category.Name))
	}

	created := *category
	created.ID = s.id("categories")
	created.CreatedAt = s.now()
	created.UpdatedAt = created.CreatedAt
	stored := created
	s.categories[created.ID] = &stored
	return &created, nil
}

func (r *MemoryCatalogRepository) UpdateCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.categories[category.ID]
	if !ok {
		return nil, errors.NewNotFoundError("category", category.ID)
	}
	if other := s.findCategory(category.Name); other != nil && other.ID != category.ID {
		return nil, errors.NewConflictError(fmt.Sprintf("category %q already exists", category.Name))
	}

	existing.Name = category.Name
	existing.UpdatedAt = s.now()
	return s.categoryWithCount(existing), nil
}

func (r *MemoryCatalogRepository) DeleteCategory(ctx context.Context, id int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return errors.NewNotFoundError("category", id)
	}
	if s.productsIn(id) > 0 {
		return errors.NewValidationError("category_id", "category still has products")
	}
	delete(s.categories, id)
	return nil
}

func (r *MemoryCatalogRepository) CountProductsInCategory(ctx context.Context, id int64) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.productsIn(id), nil
}

func (s *MemoryStore) findCategory(name string) *models.Category {
	for _, c := range s.categories {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

func (s *MemoryStore) productsIn(categoryID int64) int {
	count := 0
	for _, p := range s.products {
		if p.CategoryID == categoryID {
			count++
		}
	}
	return count
}

func (s *MemoryStore) categoryWithCount(c *models.Category) *models.Category {
	cp := *c
	cp.ProductCount = s.productsIn(c.ID)
	return &cp
}

// MemoryRatingRepository implements RatingRepository on a MemoryStore.
type MemoryRatingRepository struct{ s *MemoryStore }

func (r *MemoryRatingRepository) Create(ctx context.Context, rating *models.Rating) (*models.Rating, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.ratings {
		if existing.BuyerID == rating.BuyerID && existing.ProductID == rating.ProductID && existing.OrderID == rating.OrderID {
			return nil, errors.NewConflictError("product already rated for this order")
		}
	}

	created := *rating
	created.ID = s.id("ratings")
	created.CreatedAt = s.now()
	created.UpdatedAt = created.CreatedAt
	stored := created
	s.ratings[created.ID] = &stored
	return &created, nil
}

func (r *MemoryRatingRepository) GetByID(ctx context.Context, id int64) (*models.Rating, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	rating, ok := s.ratings[id]
	if !ok {
		return nil, errors.NewNotFoundError("rating", id)
	}
	cp := *rating
	return &cp, nil
}

func (r *MemoryRatingRepository) Find(ctx context.Context, buyerID, productID, orderID int64) (*models.Rating, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rating := range s.ratings {
		if rating.BuyerID == buyerID && rating.ProductID == productID && rating.OrderID == orderID {
			cp := *rating
			return &cp, nil
		}
	}
	return nil, errors.ErrNotFound
}

func (r *MemoryRatingRepository) Update(ctx context.Context, rating *models.Rating) (*models.Rating, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.ratings[rating.ID]
	if !ok || existing.BuyerID != rating.BuyerID {
		return nil, errors.NewNotFoundError("rating", rating.ID)
	}
	existing.Rating = rating.Rating
	existing.Comment = rating.Comment
	existing.UpdatedAt = s.now()
	cp := *existing
	return &cp, nil
}

func (r *MemoryRatingRepository) Delete(ctx context.Context, id, buyerID int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.ratings[id]
	if !ok || existing.BuyerID != buyerID {
		return errors.NewNotFoundError("rating", id)
	}
	delete(s.ratings, id)
	return nil
}

func (r *MemoryRatingRepository) ListByProduct(ctx context.Context, productID int64) ([]*models.Rating, error) {
	return r.list(func(rt *models.Rating) bool { return rt.ProductID == productID }), nil
}

func (r *MemoryRatingRepository) ListByBuyer(ctx context.Context, buyerID int64) ([]*models.Rating, error) {
	return r.list(func(rt *models.Rating) bool { return rt.BuyerID == buyerID }), nil
}

func (r *MemoryRatingRepository) list(match func(*models.Rating) bool) []*models.Rating {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Rating, 0)
	for _, rating := range s.ratings {
		if match(rating) {
			cp := *rating
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// SetProductStock overwrites a product's stock. Test and seeding helper.
func (s *MemoryStore) SetProductStock(id int64, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[id]; ok {
		p.Stock = stock
	}
}

// ForceOrderStatus overwrites an order's status and payment flag without
// running the lifecycle rules. Used to seed orders in states such as
// completed that the lifecycle never produces.
func (s *MemoryStore) ForceOrderStatus(id int64, status models.OrderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[id]; ok {
		o.Status = status
		o.IsPaid = status.ImpliesPaid()
	}
}
