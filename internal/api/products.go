package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/dukanshop/dukan/internal/catalog"
	"github.com/dukanshop/dukan/internal/domain"
	"github.com/dukanshop/dukan/internal/webserver"
)

type productPayload struct {
	CategoryID    int64            `json:"category_id"`
	Name          string           `json:"name" validate:"required,min=1,max=255"`
	Slug          string           `json:"slug" validate:"required,min=1,max=255"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discount_price"`
	Image         string           `json:"image"`
	Stock         int              `json:"stock"`
	IsActive      *bool            `json:"is_active"`
}

type categoryPayload struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Slug     string `json:"slug" validate:"required,min=1,max=150"`
	ParentID *int64 `json:"parent_id"`
}

func registerProductRoutes() {
	webserver.PubGET("/products", listProducts)
	webserver.PubGET("/products/:id", getProduct)
	webserver.PubGET("/categories", listCategories)
	webserver.PubGET("/categories/:id/products", listCategoryProducts)

	webserver.ApiPOST("/products", createProduct)
	webserver.ApiPUT("/products/:id", updateProduct)
	webserver.ApiDELETE("/products/:id", deleteProduct)
	webserver.ApiPOST("/categories", createCategory)
}

func listProducts(c echo.Context) error {
	products, err := GetApp(c).CatalogService().ListActive(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}
	return ok(c, products)
}

func getProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	product, err := GetApp(c).CatalogService().GetProduct(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
		}
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", err.Error())
	}
	return ok(c, product)
}

func listCategories(c echo.Context) error {
	categories, err := GetApp(c).CatalogService().ListCategories(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query categories", err.Error())
	}
	return ok(c, categories)
}

func listCategoryProducts(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid category ID", nil)
	}
	products, err := GetApp(c).CatalogService().ListByCategory(c.Request().Context(), id)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}
	return ok(c, products)
}

func createProduct(c echo.Context) error {
	if !isAdmin(c) {
		return fail(c, http.StatusForbidden, "FORBIDDEN", "Admin access required", nil)
	}
	var payload productPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Name and slug are required", err.Error())
	}

	product := domain.Product{
		CategoryID:    payload.CategoryID,
		Name:          strings.TrimSpace(payload.Name),
		Slug:          strings.TrimSpace(payload.Slug),
		Description:   payload.Description,
		Price:         payload.Price,
		DiscountPrice: payload.DiscountPrice,
		Image:         strings.TrimSpace(payload.Image),
		Stock:         payload.Stock,
		IsActive:      true,
	}
	if payload.IsActive != nil {
		product.IsActive = *payload.IsActive
	}
	if err := GetApp(c).CatalogService().CreateProduct(c.Request().Context(), &product); err != nil {
		return failCatalogWrite(c, err)
	}
	return ok(c, product)
}

func updateProduct(c echo.Context) error {
	if !isAdmin(c) {
		return fail(c, http.StatusForbidden, "FORBIDDEN", "Admin access required", nil)
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var payload productPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Name and slug are required", err.Error())
	}

	product := domain.Product{
		ID:            id,
		CategoryID:    payload.CategoryID,
		Name:          strings.TrimSpace(payload.Name),
		Slug:          strings.TrimSpace(payload.Slug),
		Description:   payload.Description,
		Price:         payload.Price,
		DiscountPrice: payload.DiscountPrice,
		Image:         strings.TrimSpace(payload.Image),
		Stock:         payload.Stock,
		IsActive:      true,
	}
	if payload.IsActive != nil {
		product.IsActive = *payload.IsActive
	}
	if err := GetApp(c).CatalogService().UpdateProduct(c.Request().Context(), &product); err != nil {
		return failCatalogWrite(c, err)
	}
	return ok(c, product)
}

func deleteProduct(c echo.Context) error {
	if !isAdmin(c) {
		return fail(c, http.StatusForbidden, "FORBIDDEN", "Admin access required", nil)
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	if err := GetApp(c).CatalogService().DeleteProduct(c.Request().Context(), id); err != nil {
		switch {
		case errors.Is(err, catalog.ErrProductReferenced):
			return fail(c, http.StatusConflict, "PRODUCT_REFERENCED",
				"Product has existing orders, deactivate it instead", nil)
		case errors.Is(err, catalog.ErrProductNotFound):
			return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
		}
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete product", err.Error())
	}
	return ok(c, map[string]interface{}{"id": id})
}

func createCategory(c echo.Context) error {
	if !isAdmin(c) {
		return fail(c, http.StatusForbidden, "FORBIDDEN", "Admin access required", nil)
	}
	var payload categoryPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse category", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Name and slug are required", err.Error())
	}
	category := domain.Category{
		Name:     strings.TrimSpace(payload.Name),
		Slug:     strings.TrimSpace(payload.Slug),
		ParentID: payload.ParentID,
	}
	if err := GetApp(c).CatalogService().CreateCategory(c.Request().Context(), &category); err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create category", err.Error())
	}
	return ok(c, category)
}

func failCatalogWrite(c echo.Context, err error) error {
	switch {
	case errors.Is(err, catalog.ErrInvalidPrice),
		errors.Is(err, catalog.ErrInvalidDiscount),
		errors.Is(err, catalog.ErrNegativeStock):
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	case errors.Is(err, catalog.ErrProductNotFound):
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	}
	return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to save product", err.Error())
}
