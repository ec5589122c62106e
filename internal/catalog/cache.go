package catalog

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dukanshop/dukan/internal/domain"
)

const activeListKey = "products:active"

// Cache is a TTL-bounded LRU over hot catalog reads. Writers do not update
// entries in place; every catalog or stock mutation calls
// InvalidateCatalog and the next read repopulates from the database.
type Cache struct {
	lru *expirable.LRU[string, any]
}

func NewCache(size int, ttl time.Duration) *Cache {
	return &Cache{lru: expirable.NewLRU[string, any](size, nil, ttl)}
}

func (c *Cache) GetProduct(id int64) (*domain.Product, bool) {
	v, ok := c.lru.Get(productKey(id))
	if !ok {
		return nil, false
	}
	p, ok := v.(*domain.Product)
	return p, ok
}

func (c *Cache) PutProduct(p *domain.Product) {
	c.lru.Add(productKey(p.ID), p)
}

func (c *Cache) GetActiveList() ([]domain.Product, bool) {
	v, ok := c.lru.Get(activeListKey)
	if !ok {
		return nil, false
	}
	list, ok := v.([]domain.Product)
	return list, ok
}

func (c *Cache) PutActiveList(list []domain.Product) {
	c.lru.Add(activeListKey, list)
}

// InvalidateCatalog drops every cached entry.
func (c *Cache) InvalidateCatalog() {
	c.lru.Purge()
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}
