package domain

var Tables = []interface{}{
	// Users
	&ShopUser{},
	&TelegramAuthSession{},
	// Catalog
	&Category{},
	&Product{},
	&Review{},
	// Cart
	&Cart{},
	&CartItem{},
	// Orders
	&Order{},
	&OrderItem{},
	&OrderEvent{},
}
