package checkout

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dukanshop/dukan/internal/domain"
)

// CacheInvalidator drops cached catalog reads after stock changes.
type CacheInvalidator interface {
	InvalidateCatalog()
}

// Params describes one checkout request. An empty CartItemIDs slice means
// the whole cart; a non-empty slice restricts the purchase to those cart
// item rows. An empty Address falls back to the user's profile address.
type Params struct {
	UserID      int64
	CartItemIDs []int64
	Address     string
}

// Engine converts a cart into an order inside a single database
// transaction. Product rows are locked in ascending id order, stock is
// re-read under the lock, and the outbox event is written in the same
// transaction so notification can never observe an uncommitted order.
type Engine struct {
	db    *gorm.DB
	ids   *snowflake.Node
	cache CacheInvalidator
	kick  func()
}

// NewEngine wires the engine. cache and kick may be nil; kick is invoked
// after a successful commit to wake the notification dispatcher early.
func NewEngine(db *gorm.DB, ids *snowflake.Node, cache CacheInvalidator, kick func()) *Engine {
	return &Engine{db: db, ids: ids, cache: cache, kick: kick}
}

type eventPayload struct {
	OrderID    int64  `json:"order_id"`
	UserID     int64  `json:"user_id"`
	TotalPrice string `json:"total_price"`
	Address    string `json:"address"`
	CreatedAt  string `json:"created_at"`
}

// Checkout atomically creates an order from the selected cart items.
// Any failure rolls back everything: no partial stock decrements, no
// partially removed cart lines.
func (e *Engine) Checkout(ctx context.Context, p Params) (*domain.Order, error) {
	var order *domain.Order
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart domain.Cart
		if err := tx.Where("user_id = ?", p.UserID).First(&cart).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &ValidationError{Code: CodeCartNotFound, Message: "cart not found"}
			}
			return errors.WithStack(err)
		}

		itemQuery := tx.Where("cart_id = ?", cart.ID)
		if len(p.CartItemIDs) > 0 {
			itemQuery = itemQuery.Where("id IN ?", p.CartItemIDs)
		}
		var items []domain.CartItem
		if err := itemQuery.Order("id ASC").Find(&items).Error; err != nil {
			return errors.WithStack(err)
		}
		if len(items) == 0 {
			return &ValidationError{Code: CodeNoItemsSelected, Message: "no cart items selected"}
		}

		address := strings.TrimSpace(p.Address)
		if address == "" {
			var user domain.ShopUser
			if err := tx.First(&user, p.UserID).Error; err != nil {
				return errors.WithStack(err)
			}
			address = strings.TrimSpace(user.Address)
		}
		if address == "" {
			return &ValidationError{Code: CodeMissingAddress, Message: "delivery address is required"}
		}

		products, err := e.lockProducts(tx, items)
		if err != nil {
			return err
		}

		total := decimal.Zero
		orderItems := make([]domain.OrderItem, 0, len(items))
		for _, item := range items {
			prod, found := products[item.ProductID]
			if !found {
				return &ValidationError{
					Code:      CodeProductUnavailable,
					Message:   fmt.Sprintf("product %d is no longer available", item.ProductID),
					ProductID: item.ProductID,
				}
			}
			if prod.Stock < item.Quantity {
				return &ValidationError{
					Code:      CodeInsufficientStock,
					Message:   fmt.Sprintf("insufficient stock for %s", prod.Name),
					ProductID: prod.ID,
				}
			}
			price := prod.EffectivePrice()
			total = total.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
			orderItems = append(orderItems, domain.OrderItem{
				ProductID: prod.ID,
				Quantity:  item.Quantity,
				Price:     price,
			})
			prod.Stock -= item.Quantity
		}

		order = &domain.Order{
			UserID:     p.UserID,
			TotalPrice: total,
			Status:     domain.OrderStatusPending,
			Address:    address,
		}
		if err := tx.Create(order).Error; err != nil {
			return errors.WithStack(err)
		}
		for i := range orderItems {
			orderItems[i].OrderID = order.ID
		}
		if err := tx.Create(&orderItems).Error; err != nil {
			return errors.WithStack(err)
		}

		for _, prod := range products {
			err := tx.Model(&domain.Product{}).
				Where("id = ?", prod.ID).
				Update("stock", prod.Stock).Error
			if err != nil {
				return errors.WithStack(err)
			}
		}

		itemIDs := make([]int64, 0, len(items))
		for _, item := range items {
			itemIDs = append(itemIDs, item.ID)
		}
		if err := tx.Where("id IN ?", itemIDs).Delete(&domain.CartItem{}).Error; err != nil {
			return errors.WithStack(err)
		}
		err = tx.Model(&domain.Cart{}).
			Where("id = ?", cart.ID).
			Update("updated_at", time.Now()).Error
		if err != nil {
			return errors.WithStack(err)
		}

		return e.writeEvent(tx, order)
	})
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		e.cache.InvalidateCatalog()
	}
	if e.kick != nil {
		e.kick()
	}
	zap.L().Info("checkout committed",
		zap.Int64("user_id", p.UserID),
		zap.Int64("order_id", order.ID),
		zap.String("total_price", order.TotalPrice.String()))
	return order, nil
}

// lockProducts loads the product rows behind the cart items with row locks,
// always in ascending id order so concurrent checkouts acquire locks in the
// same sequence. sqlite has no row locks and serializes writers itself.
func (e *Engine) lockProducts(tx *gorm.DB, items []domain.CartItem) (map[int64]*domain.Product, error) {
	seen := make(map[int64]bool, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	query := tx.Where("id IN ?", ids).Order("id ASC")
	if tx.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rows []domain.Product
	if err := query.Find(&rows).Error; err != nil {
		return nil, errors.WithStack(err)
	}
	products := make(map[int64]*domain.Product, len(rows))
	for i := range rows {
		products[rows[i].ID] = &rows[i]
	}
	return products, nil
}

// writeEvent inserts the outbox row inside the checkout transaction.
func (e *Engine) writeEvent(tx *gorm.DB, order *domain.Order) error {
	payload, err := jsoniter.MarshalToString(eventPayload{
		OrderID:    order.ID,
		UserID:     order.UserID,
		TotalPrice: order.TotalPrice.StringFixed(2),
		Address:    order.Address,
		CreatedAt:  order.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return errors.WithStack(err)
	}
	event := domain.OrderEvent{
		EventID:       e.ids.Generate().Int64(),
		OrderID:       order.ID,
		Payload:       payload,
		Status:        domain.EventStatusPending,
		NextAttemptAt: time.Now(),
	}
	return errors.WithStack(tx.Create(&event).Error)
}
