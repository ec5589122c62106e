package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dukanshop/dukan/internal/domain"
	"github.com/dukanshop/dukan/internal/testdb"
)

func newService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testdb.Open(t)
	return NewService(db, NewCache(128, time.Minute)), db
}

func product(name string, price int64, discount *int64) *domain.Product {
	p := &domain.Product{
		Name:     name,
		Slug:     name,
		Price:    decimal.NewFromInt(price),
		Stock:    10,
		IsActive: true,
	}
	if discount != nil {
		d := decimal.NewFromInt(*discount)
		p.DiscountPrice = &d
	}
	return p
}

func int64p(v int64) *int64 { return &v }

func TestCreateProductDiscountInvariant(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.CreateProduct(ctx, product("equal", 100, int64p(100))), ErrInvalidDiscount)
	assert.ErrorIs(t, svc.CreateProduct(ctx, product("above", 100, int64p(150))), ErrInvalidDiscount)
	assert.NoError(t, svc.CreateProduct(ctx, product("below", 100, int64p(80))))
	assert.NoError(t, svc.CreateProduct(ctx, product("none", 100, nil)))
}

func TestUpdateProductKeepsInvariants(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	p := product("widget", 100, nil)
	require.NoError(t, svc.CreateProduct(ctx, p))

	p.DiscountPrice = func() *decimal.Decimal {
		d := decimal.NewFromInt(120)
		return &d
	}()
	assert.ErrorIs(t, svc.UpdateProduct(ctx, p), ErrInvalidDiscount)

	p.DiscountPrice = nil
	p.Stock = -1
	assert.ErrorIs(t, svc.UpdateProduct(ctx, p), ErrNegativeStock)

	p.Stock = 3
	p.Price = decimal.Zero
	assert.ErrorIs(t, svc.UpdateProduct(ctx, p), ErrInvalidPrice)

	missing := product("ghost", 100, nil)
	missing.ID = 424242
	assert.ErrorIs(t, svc.UpdateProduct(ctx, missing), ErrProductNotFound)
}

func TestDeleteProductReferencedByOrder(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	p := product("sold-once", 100, nil)
	require.NoError(t, svc.CreateProduct(ctx, p))
	require.NoError(t, db.Create(&domain.Order{UserID: 1, Address: "addr"}).Error)
	require.NoError(t, db.Create(&domain.OrderItem{
		OrderID:   1,
		ProductID: p.ID,
		Quantity:  1,
		Price:     decimal.NewFromInt(100),
	}).Error)

	assert.ErrorIs(t, svc.DeleteProduct(ctx, p.ID), ErrProductReferenced)

	var count int64
	require.NoError(t, db.Model(&domain.Product{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	fresh := product("unsold", 100, nil)
	require.NoError(t, svc.CreateProduct(ctx, fresh))
	assert.NoError(t, svc.DeleteProduct(ctx, fresh.ID))
	assert.ErrorIs(t, svc.DeleteProduct(ctx, fresh.ID), ErrProductNotFound)
}

func TestListActiveCachesAndInvalidates(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateProduct(ctx, product("first", 100, nil)))

	list, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// a raw row insert is invisible while the cache holds the list
	raw := product("sneaky", 100, nil)
	require.NoError(t, db.Create(raw).Error)
	list, err = svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// a service write invalidates and the next read sees everything
	require.NoError(t, svc.CreateProduct(ctx, product("second", 100, nil)))
	list, err = svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestGetProductCaching(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	p := product("cached", 100, nil)
	require.NoError(t, svc.CreateProduct(ctx, p))

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "cached", got.Name)

	// stale until invalidated
	require.NoError(t, db.Model(&domain.Product{}).
		Where("id = ?", p.ID).Update("name", "renamed").Error)
	got, err = svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "cached", got.Name)

	svc.cache.InvalidateCatalog()
	got, err = svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)

	_, err = svc.GetProduct(ctx, 999999)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestEffectivePriceHelpers(t *testing.T) {
	p := product("sale", 1000, int64p(800))
	assert.True(t, p.OnSale())
	assert.True(t, p.EffectivePrice().Equal(decimal.NewFromInt(800)))
	assert.Equal(t, 20, p.DiscountPercent())

	plain := product("plain", 1000, nil)
	assert.False(t, plain.OnSale())
	assert.True(t, plain.EffectivePrice().Equal(decimal.NewFromInt(1000)))
	assert.Zero(t, plain.DiscountPercent())
}
