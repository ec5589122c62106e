package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dukanshop/dukan/internal/domain"
	"github.com/dukanshop/dukan/internal/webserver"
)

type reviewPayload struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

func registerReviewRoutes() {
	webserver.PubGET("/products/:id/reviews", listProductReviews)
	webserver.ApiPOST("/products/:id/reviews", createReview)
}

func listProductReviews(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	page, pageSize := parsePagination(c)

	db := GetDB(c).Model(&domain.Review{}).Where("product_id = ?", id)
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query reviews", err.Error())
	}
	var rows []domain.Review
	err = db.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query reviews", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

func createReview(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var payload reviewPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse review", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Rating must be between 1 and 5", err.Error())
	}

	var exists int64
	if err := GetDB(c).Model(&domain.Product{}).Where("id = ?", id).Count(&exists).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", err.Error())
	}
	if exists == 0 {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	}

	review := domain.Review{
		ProductID: id,
		UserID:    currentUserID(c),
		Rating:    payload.Rating,
		Comment:   strings.TrimSpace(payload.Comment),
	}
	if err := GetDB(c).Create(&review).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create review", err.Error())
	}
	return c.JSON(http.StatusCreated, review)
}
