package webserver

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/dukanshop/dukan/internal/app"
)

// AppContextKey is the echo context key holding the Application.
const AppContextKey = "dukan_app"

type WebServer struct {
	appCtx *app.Application
	root   *echo.Echo
	pub    *echo.Group
	api    *echo.Group
}

var server *WebServer

type serverValidator struct {
	validate *validator.Validate
}

func (v *serverValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// Init builds the HTTP server: a public group and a JWT-protected group,
// both with the application injected into the request context.
func Init(application *app.Application) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &serverValidator{validate: validator.New()}
	e.Use(middleware.Recover())
	e.Use(injectApp(application))

	pub := e.Group("/api")
	api := e.Group("/api")
	api.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(application.Config().Web.JwtSecret),
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
		},
	}))

	server = &WebServer{appCtx: application, root: e, pub: pub, api: api}
}

func injectApp(application *app.Application) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(AppContextKey, application)
			return next(c)
		}
	}
}

// Listen blocks serving HTTP on the configured address.
func Listen() error {
	cfg := server.appCtx.Config().Web
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	zap.L().Info("http server listening", zap.String("addr", addr))
	return server.root.Start(addr)
}

// Shutdown stops the HTTP server.
func Shutdown() {
	if server != nil {
		_ = server.root.Close()
	}
}

// Echo exposes the root instance (used in handler tests).
func Echo() *echo.Echo {
	return server.root
}

// PubGET registers an unauthenticated GET route.
func PubGET(path string, h echo.HandlerFunc) {
	server.pub.GET(path, h)
}

// PubPOST registers an unauthenticated POST route.
func PubPOST(path string, h echo.HandlerFunc) {
	server.pub.POST(path, h)
}

// ApiGET registers an authenticated GET route.
func ApiGET(path string, h echo.HandlerFunc) {
	server.api.GET(path, h)
}

// ApiPOST registers an authenticated POST route.
func ApiPOST(path string, h echo.HandlerFunc) {
	server.api.POST(path, h)
}

// ApiPUT registers an authenticated PUT route.
func ApiPUT(path string, h echo.HandlerFunc) {
	server.api.PUT(path, h)
}

// ApiDELETE registers an authenticated DELETE route.
func ApiDELETE(path string, h echo.HandlerFunc) {
	server.api.DELETE(path, h)
}

// TokenClaims extracts the parsed JWT claims from an authenticated request.
func TokenClaims(c echo.Context) jwt.MapClaims {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return jwt.MapClaims{}
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return jwt.MapClaims{}
	}
	return claims
}
