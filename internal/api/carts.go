package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dukanshop/dukan/internal/cart"
	"github.com/dukanshop/dukan/internal/webserver"
)

type addToCartPayload struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gte=1"`
}

func registerCartRoutes() {
	webserver.ApiGET("/cart", getCart)
	webserver.ApiPOST("/cart/add", postAddToCart)
	webserver.ApiDELETE("/cart/items/:id", deleteCartItem)
}

func getCart(c echo.Context) error {
	view, err := GetApp(c).CartService().GetCart(c.Request().Context(), currentUserID(c))
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load cart", err.Error())
	}
	return ok(c, view)
}

// postAddToCart response shapes are a fixed contract with the clients.
func postAddToCart(c echo.Context) error {
	var payload addToCartPayload
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "product_id and quantity (>= 1) are required"})
	}

	err := GetApp(c).CartService().AddToCart(c.Request().Context(),
		currentUserID(c), payload.ProductID, payload.Quantity)
	if err != nil {
		var stockErr *cart.InsufficientStockError
		switch {
		case errors.As(err, &stockErr):
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error":   stockErr.Error(),
				"details": stockErr.Details(),
			})
		case errors.Is(err, cart.ErrProductNotFound):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "product not found"})
		case errors.Is(err, cart.ErrInvalidQuantity):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must be at least 1"})
		}
		zap.L().Error("add to cart failed",
			zap.Int64("user_id", currentUserID(c)),
			zap.Int64("product_id", payload.ProductID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to add to cart"})
	}

	return c.JSON(http.StatusCreated, echo.Map{"message": "Product added to cart"})
}

func deleteCartItem(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid cart item ID", nil)
	}
	err = GetApp(c).CartService().RemoveItem(c.Request().Context(), currentUserID(c), id)
	if err != nil {
		if errors.Is(err, cart.ErrItemNotFound) {
			return fail(c, http.StatusNotFound, "NOT_FOUND", "Cart item not found", nil)
		}
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to remove cart item", err.Error())
	}
	return ok(c, map[string]interface{}{"id": id})
}
