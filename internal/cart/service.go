package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dukanshop/dukan/internal/domain"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrItemNotFound    = errors.New("cart item not found")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// InsufficientStockError reports the full arithmetic behind a rejected add:
// what is in stock, what the cart already holds, and what was requested.
type InsufficientStockError struct {
	ProductName string
	Stock       int
	InCart      int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %s", e.ProductName)
}

// Details renders the breakdown shown to the client.
func (e *InsufficientStockError) Details() string {
	return fmt.Sprintf("in stock: %d, in cart: %d, requested: %d", e.Stock, e.InCart, e.Requested)
}

// Service owns the cart mutations. Every mutation touches the cart's
// UpdatedAt so the abandonment purge sees live carts as fresh.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ItemView is one cart line joined with its product.
type ItemView struct {
	ID           int64           `json:"id"`
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	LineTotal    decimal.Decimal `json:"line_total"`
	ProductStock int             `json:"product_stock"`
}

type View struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	Items      []ItemView      `json:"items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// AddToCart adds quantity of a product to the user's cart, creating the
// cart on first use. The stock check is cumulative: quantity already in the
// cart counts against stock, so a cart can never hold more of a product
// than exists.
func (s *Service) AddToCart(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product domain.Product
		err := tx.Where("id = ? and is_active = ?", productID, true).First(&product).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return errors.WithStack(err)
		}

		cart, err := getOrCreateCart(tx, userID)
		if err != nil {
			return err
		}

		var item domain.CartItem
		inCart := 0
		err = tx.Where("cart_id = ? and product_id = ?", cart.ID, productID).First(&item).Error
		switch {
		case err == nil:
			inCart = item.Quantity
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return errors.WithStack(err)
		}

		if product.Stock < inCart+quantity {
			return &InsufficientStockError{
				ProductName: product.Name,
				Stock:       product.Stock,
				InCart:      inCart,
				Requested:   quantity,
			}
		}

		if item.ID == 0 {
			item = domain.CartItem{CartID: cart.ID, ProductID: productID, Quantity: quantity}
			if err := tx.Create(&item).Error; err != nil {
				return errors.WithStack(err)
			}
		} else {
			err := tx.Model(&item).Update("quantity", inCart+quantity).Error
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return touchCart(tx, cart.ID)
	})
}

// RemoveItem deletes one cart line by its id, scoped to the user's cart.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart domain.Cart
		if err := tx.Where("user_id = ?", userID).First(&cart).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return errors.WithStack(err)
		}
		result := tx.Where("id = ? and cart_id = ?", itemID, cart.ID).Delete(&domain.CartItem{})
		if result.Error != nil {
			return errors.WithStack(result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrItemNotFound
		}
		return touchCart(tx, cart.ID)
	})
}

// GetCart returns the cart with product names, effective unit prices and
// totals. A user with no cart yet gets an empty view, not an error.
func (s *Service) GetCart(ctx context.Context, userID int64) (*View, error) {
	var cart domain.Cart
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &View{UserID: userID, Items: []ItemView{}, TotalPrice: decimal.Zero}, nil
		}
		return nil, errors.WithStack(err)
	}

	var items []domain.CartItem
	err = s.db.WithContext(ctx).
		Where("cart_id = ?", cart.ID).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, errors.WithStack(err)
	}

	view := &View{
		ID:         cart.ID,
		UserID:     userID,
		Items:      make([]ItemView, 0, len(items)),
		TotalPrice: decimal.Zero,
		UpdatedAt:  cart.UpdatedAt,
	}
	if len(items) == 0 {
		return view, nil
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	var products []domain.Product
	err = s.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error
	if err != nil {
		return nil, errors.WithStack(err)
	}
	byID := make(map[int64]*domain.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	for _, item := range items {
		prod := byID[item.ProductID]
		if prod == nil {
			continue
		}
		price := prod.EffectivePrice()
		lineTotal := price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		view.Items = append(view.Items, ItemView{
			ID:           item.ID,
			ProductID:    prod.ID,
			ProductName:  prod.Name,
			UnitPrice:    price,
			Quantity:     item.Quantity,
			LineTotal:    lineTotal,
			ProductStock: prod.Stock,
		})
		view.TotalPrice = view.TotalPrice.Add(lineTotal)
	}
	return view, nil
}

// PurgeAbandoned deletes carts whose last mutation is older than maxAge,
// items first. Returns the number of carts removed.
func (s *Service) PurgeAbandoned(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	var purged int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []int64
		err := tx.Model(&domain.Cart{}).
			Where("updated_at < ?", cutoff).
			Pluck("id", &ids).Error
		if err != nil {
			return errors.WithStack(err)
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("cart_id IN ?", ids).Delete(&domain.CartItem{}).Error; err != nil {
			return errors.WithStack(err)
		}
		result := tx.Where("id IN ?", ids).Delete(&domain.Cart{})
		if result.Error != nil {
			return errors.WithStack(result.Error)
		}
		purged = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		zap.L().Info("purged abandoned carts", zap.Int64("count", purged))
	}
	return purged, nil
}

func getOrCreateCart(tx *gorm.DB, userID int64) (*domain.Cart, error) {
	var cart domain.Cart
	err := tx.Where("user_id = ?", userID).First(&cart).Error
	if err == nil {
		return &cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.WithStack(err)
	}
	cart = domain.Cart{UserID: userID}
	if err := tx.Create(&cart).Error; err != nil {
		return nil, errors.WithStack(err)
	}
	return &cart, nil
}

func touchCart(tx *gorm.DB, cartID int64) error {
	err := tx.Model(&domain.Cart{}).
		Where("id = ?", cartID).
		Update("updated_at", time.Now()).Error
	return errors.WithStack(err)
}
