package cart

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dukanshop/dukan/internal/domain"
	"github.com/dukanshop/dukan/internal/testdb"
)

func seedProduct(t *testing.T, db *gorm.DB, name string, price int64, discount *int64, stock int) *domain.Product {
	t.Helper()
	product := &domain.Product{
		Name:     name,
		Slug:     name,
		Price:    decimal.NewFromInt(price),
		Stock:    stock,
		IsActive: true,
	}
	if discount != nil {
		d := decimal.NewFromInt(*discount)
		product.DiscountPrice = &d
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func TestAddToCartCreatesCartAndMergesLines(t *testing.T) {
	db := testdb.Open(t)
	svc := NewService(db)
	product := seedProduct(t, db, "p1", 100, nil, 10)
	ctx := context.Background()

	require.NoError(t, svc.AddToCart(ctx, 1, product.ID, 2))
	require.NoError(t, svc.AddToCart(ctx, 1, product.ID, 1))

	var items []domain.CartItem
	require.NoError(t, db.Find(&items).Error)
	require.Len(t, items, 1, "same product merges into one line")
	assert.Equal(t, 3, items[0].Quantity)

	var carts int64
	require.NoError(t, db.Model(&domain.Cart{}).Count(&carts).Error)
	assert.EqualValues(t, 1, carts)
}

func TestAddToCartCumulativeStockCheck(t *testing.T) {
	db := testdb.Open(t)
	svc := NewService(db)
	product := seedProduct(t, db, "scarce", 100, nil, 5)
	ctx := context.Background()

	require.NoError(t, svc.AddToCart(ctx, 1, product.ID, 3))

	err := svc.AddToCart(ctx, 1, product.ID, 3)
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr), "got %v", err)
	assert.Equal(t, 5, stockErr.Stock)
	assert.Equal(t, 3, stockErr.InCart)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, "in stock: 5, in cart: 3, requested: 3", stockErr.Details())

	// the rejected add must not touch the cart
	var item domain.CartItem
	require.NoError(t, db.First(&item).Error)
	assert.Equal(t, 3, item.Quantity)
}

func TestAddToCartRejectsBadInput(t *testing.T) {
	db := testdb.Open(t)
	svc := NewService(db)
	ctx := context.Background()

	assert.ErrorIs(t, svc.AddToCart(ctx, 1, 42, 0), ErrInvalidQuantity)
	assert.ErrorIs(t, svc.AddToCart(ctx, 1, 42, 1), ErrProductNotFound)

	inactive := seedProduct(t, db, "hidden", 100, nil, 5)
	require.NoError(t, db.Model(inactive).Update("is_active", false).Error)
	assert.ErrorIs(t, svc.AddToCart(ctx, 1, inactive.ID, 1), ErrProductNotFound)
}

func TestRemoveItem(t *testing.T) {
	db := testdb.Open(t)
	svc := NewService(db)
	product := seedProduct(t, db, "p1", 100, nil, 5)
	ctx := context.Background()

	require.NoError(t, svc.AddToCart(ctx, 1, product.ID, 1))
	var item domain.CartItem
	require.NoError(t, db.First(&item).Error)

	assert.ErrorIs(t, svc.RemoveItem(ctx, 2, item.ID), ErrItemNotFound)
	require.NoError(t, svc.RemoveItem(ctx, 1, item.ID))
	assert.ErrorIs(t, svc.RemoveItem(ctx, 1, item.ID), ErrItemNotFound)
}

func TestGetCartTotalsUseEffectivePrice(t *testing.T) {
	db := testdb.Open(t)
	svc := NewService(db)
	discount := int64(800)
	onSale := seedProduct(t, db, "sale", 1000, &discount, 10)
	plain := seedProduct(t, db, "plain", 300, nil, 10)
	ctx := context.Background()

	require.NoError(t, svc.AddToCart(ctx, 1, onSale.ID, 2))
	require.NoError(t, svc.AddToCart(ctx, 1, plain.ID, 1))

	view, err := svc.GetCart(ctx, 1)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.True(t, view.TotalPrice.Equal(decimal.NewFromInt(1900)),
		"total %s", view.TotalPrice)
	assert.True(t, view.Items[0].UnitPrice.Equal(decimal.NewFromInt(800)))
	assert.True(t, view.Items[0].LineTotal.Equal(decimal.NewFromInt(1600)))
}

func TestGetCartEmptyForNewUser(t *testing.T) {
	db := testdb.Open(t)
	svc := NewService(db)

	view, err := svc.GetCart(context.Background(), 99)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.True(t, view.TotalPrice.IsZero())
}

func TestPurgeAbandoned(t *testing.T) {
	db := testdb.Open(t)
	svc := NewService(db)
	product := seedProduct(t, db, "p1", 100, nil, 10)
	ctx := context.Background()

	require.NoError(t, svc.AddToCart(ctx, 1, product.ID, 1))
	require.NoError(t, svc.AddToCart(ctx, 2, product.ID, 1))

	// age one cart past the TTL
	var stale domain.Cart
	require.NoError(t, db.Where("user_id = ?", 1).First(&stale).Error)
	require.NoError(t, db.Model(&domain.Cart{}).
		Where("id = ?", stale.ID).
		Update("updated_at", time.Now().Add(-80*time.Hour)).Error)

	purged, err := svc.PurgeAbandoned(ctx, 72*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	var carts, items int64
	require.NoError(t, db.Model(&domain.Cart{}).Count(&carts).Error)
	require.NoError(t, db.Model(&domain.CartItem{}).Count(&items).Error)
	assert.EqualValues(t, 1, carts)
	assert.EqualValues(t, 1, items)
}
