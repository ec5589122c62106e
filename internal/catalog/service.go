package catalog

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/dukanshop/dukan/internal/domain"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrInvalidPrice      = errors.New("price must be positive")
	ErrInvalidDiscount   = errors.New("discount price must be lower than price")
	ErrNegativeStock     = errors.New("stock cannot be negative")
	ErrProductReferenced = errors.New("product is referenced by existing orders")
)

// Service owns catalog reads and admin writes. Reads go through the cache;
// every write path invalidates it explicitly, there is no implicit
// write-through.
type Service struct {
	db    *gorm.DB
	cache *Cache
}

func NewService(db *gorm.DB, cache *Cache) *Service {
	return &Service{db: db, cache: cache}
}

// ListActive returns all active products, cached.
func (s *Service) ListActive(ctx context.Context) ([]domain.Product, error) {
	if list, ok := s.cache.GetActiveList(); ok {
		return list, nil
	}
	var products []domain.Product
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&products).Error
	if err != nil {
		return nil, errors.WithStack(err)
	}
	s.cache.PutActiveList(products)
	return products, nil
}

// GetProduct returns one product by id, cached. Inactive products are
// still visible by id so existing order and cart views can resolve them.
func (s *Service) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if p, ok := s.cache.GetProduct(id); ok {
		return p, nil
	}
	var product domain.Product
	err := s.db.WithContext(ctx).First(&product, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, errors.WithStack(err)
	}
	s.cache.PutProduct(&product)
	return &product, nil
}

// CreateProduct validates and inserts a product, then invalidates the cache.
func (s *Service) CreateProduct(ctx context.Context, product *domain.Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(product).Error; err != nil {
		return errors.WithStack(err)
	}
	s.cache.InvalidateCatalog()
	return nil
}

// UpdateProduct saves a full product row. The discount invariant is checked
// on every write, not only on create.
func (s *Service) UpdateProduct(ctx context.Context, product *domain.Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).
		Model(&domain.Product{}).
		Where("id = ?", product.ID).
		Select("category_id", "name", "slug", "description", "price",
			"discount_price", "image", "stock", "is_active").
		Updates(product)
	if result.Error != nil {
		return errors.WithStack(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	s.cache.InvalidateCatalog()
	return nil
}

// DeleteProduct removes a product unless any order item references it.
// Referenced products should be deactivated instead, so historical order
// lines keep resolving.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		err := tx.Model(&domain.OrderItem{}).Where("product_id = ?", id).Count(&refs).Error
		if err != nil {
			return errors.WithStack(err)
		}
		if refs > 0 {
			return ErrProductReferenced
		}
		result := tx.Where("id = ?", id).Delete(&domain.Product{})
		if result.Error != nil {
			return errors.WithStack(result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrProductNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.cache.InvalidateCatalog()
	return nil
}

// ListCategories returns all categories ordered by name.
func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	err := s.db.WithContext(ctx).Order("name ASC").Find(&categories).Error
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return categories, nil
}

// CreateCategory inserts a category and invalidates the cache.
func (s *Service) CreateCategory(ctx context.Context, category *domain.Category) error {
	if err := s.db.WithContext(ctx).Create(category).Error; err != nil {
		return errors.WithStack(err)
	}
	s.cache.InvalidateCatalog()
	return nil
}

// ListByCategory returns active products in one category.
func (s *Service) ListByCategory(ctx context.Context, categoryID int64) ([]domain.Product, error) {
	var products []domain.Product
	err := s.db.WithContext(ctx).
		Where("category_id = ? and is_active = ?", categoryID, true).
		Order("id ASC").
		Find(&products).Error
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return products, nil
}

func validateProduct(p *domain.Product) error {
	if !p.Price.IsPositive() {
		return ErrInvalidPrice
	}
	if p.DiscountPrice != nil && !p.DiscountPrice.LessThan(p.Price) {
		return ErrInvalidDiscount
	}
	if p.Stock < 0 {
		return ErrNegativeStock
	}
	return nil
}
