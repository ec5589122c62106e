package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
	"gorm.io/gorm"

	"github.com/dukanshop/dukan/internal/app"
	"github.com/dukanshop/dukan/internal/webserver"
)

// GetApp returns the Application injected by the webserver middleware.
func GetApp(c echo.Context) *app.Application {
	return c.Get(webserver.AppContextKey).(*app.Application)
}

// GetDB returns the request-scoped database handle.
func GetDB(c echo.Context) *gorm.DB {
	return GetApp(c).DB()
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

func fail(c echo.Context, status int, code, message string, detail interface{}) error {
	return c.JSON(status, echo.Map{
		"code":    code,
		"message": message,
		"detail":  detail,
	})
}

func paged(c echo.Context, rows interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, echo.Map{
		"data":     rows,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

func parsePagination(c echo.Context) (page, pageSize int) {
	page = 1
	pageSize = 20
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		page = p
	}
	if ps, err := strconv.Atoi(c.QueryParam("pageSize")); err == nil && ps > 0 && ps <= 500 {
		pageSize = ps
	}
	return page, pageSize
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}

// currentUserID reads the authenticated user id from the JWT claims.
func currentUserID(c echo.Context) int64 {
	return cast.ToInt64(webserver.TokenClaims(c)["uid"])
}

func currentRole(c echo.Context) string {
	return cast.ToString(webserver.TokenClaims(c)["role"])
}

func isAdmin(c echo.Context) bool {
	return currentRole(c) == "admin"
}
