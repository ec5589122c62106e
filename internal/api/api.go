// Package api exposes the shop's HTTP surface on the webserver route
// registry: public catalog and auth endpoints, JWT-protected cart, order
// and profile endpoints, and admin catalog writes.
package api

// Init registers every route group. Call after webserver.Init.
func Init() {
	registerProductRoutes()
	registerCartRoutes()
	registerOrderRoutes()
	registerReviewRoutes()
	registerUserRoutes()
}
