package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dukanshop/dukan/internal/checkout"
	"github.com/dukanshop/dukan/internal/domain"
	"github.com/dukanshop/dukan/internal/webserver"
)

type checkoutPayload struct {
	Address     string  `json:"address"`
	CartItemIDs []int64 `json:"cart_item_ids"`
}

func registerOrderRoutes() {
	webserver.ApiPOST("/orders/checkout", postCheckout)
	webserver.ApiGET("/orders", listOrders)
	webserver.ApiGET("/orders/:id", getOrder)
	webserver.ApiPOST("/orders/:id/pay", payOrder)
}

// postCheckout response shapes are a fixed contract with the clients; do
// not route them through the shared ok/fail helpers.
func postCheckout(c echo.Context) error {
	var payload checkoutPayload
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	order, err := GetApp(c).CheckoutEngine().Checkout(c.Request().Context(), checkout.Params{
		UserID:      currentUserID(c),
		CartItemIDs: payload.CartItemIDs,
		Address:     payload.Address,
	})
	if err != nil {
		if ve, isValidation := checkout.AsValidation(err); isValidation {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Message})
		}
		zap.L().Error("checkout failed", zap.Int64("user_id", currentUserID(c)), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "checkout failed, please try again"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message":  fmt.Sprintf("Order #%d created", order.ID),
		"order_id": order.ID,
	})
}

func listOrders(c echo.Context) error {
	page, pageSize := parsePagination(c)
	db := GetDB(c).Model(&domain.Order{}).Where("user_id = ?", currentUserID(c))

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query orders", err.Error())
	}

	var rows []domain.Order
	err := db.Preload("Items").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query orders", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

func getOrder(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	var order domain.Order
	err = GetDB(c).Preload("Items").
		Where("id = ? and user_id = ?", id, currentUserID(c)).
		First(&order).Error
	if err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Order not found", nil)
	}
	return ok(c, order)
}

// payOrder flips pending to paid. There is no payment gateway behind this;
// the transition only guards against double payment.
func payOrder(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	result := GetDB(c).Model(&domain.Order{}).
		Where("id = ? and user_id = ? and status = ?", id, currentUserID(c), domain.OrderStatusPending).
		Update("status", domain.OrderStatusPaid)
	if result.Error != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update order", result.Error.Error())
	}
	if result.RowsAffected == 0 {
		var count int64
		GetDB(c).Model(&domain.Order{}).
			Where("id = ? and user_id = ?", id, currentUserID(c)).
			Count(&count)
		if count == 0 {
			return fail(c, http.StatusNotFound, "NOT_FOUND", "Order not found", nil)
		}
		return fail(c, http.StatusBadRequest, "INVALID_STATE", "Order is not payable", nil)
	}
	return ok(c, map[string]interface{}{"id": id, "status": domain.OrderStatusPaid})
}
