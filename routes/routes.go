package routes

import (
	"net/http"

	"tienda/auth"
	"tienda/carts"
	"tienda/middleware"
	"tienda/products"
	"tienda/ratelim"
	"tienda/tickets"

	"github.com/julienschmidt/httprouter"
)

// AdminRole guards catalog mutation and the admin listings.
const AdminRole = "admin"

func AddStaticRoutes(router *httprouter.Router, uploadDir string) {
	router.ServeFiles("/static/uploads/*filepath", http.Dir(uploadDir))
}

func AddAuthRoutes(router *httprouter.Router, h *auth.Handlers, reset *auth.ResetHandlers, am *middleware.Auth, rl *ratelim.RateLimiter) {
	router.POST("/api/auth/register", rl.Limit(h.Register))
	router.POST("/api/auth/login", rl.Limit(h.Login))
	router.POST("/api/auth/refresh", rl.Limit(h.Refresh))
	router.POST("/api/auth/logout", am.Authenticate(h.Logout))
	router.GET("/api/auth/me", am.Authenticate(h.Me))
	router.POST("/api/auth/reset-request", rl.Limit(reset.RequestReset))
	router.POST("/api/auth/reset", rl.Limit(reset.ResetPassword))
}

func AddProductRoutes(router *httprouter.Router, h *products.Handlers, am *middleware.Auth) {
	router.GET("/api/products", h.List)
	router.GET("/api/products/:pid", h.Get)
	router.POST("/api/products", am.RequireRole(AdminRole, h.Create))
	router.PUT("/api/products/:pid", am.RequireRole(AdminRole, h.Update))
	router.DELETE("/api/products/:pid", am.RequireRole(AdminRole, h.Delete))
	router.POST("/api/products/:pid/images", am.RequireRole(AdminRole, h.UploadImage))
}

func AddCartRoutes(router *httprouter.Router, h *carts.Handlers, am *middleware.Auth, rl *ratelim.RateLimiter) {
	router.GET("/api/cart", am.Authenticate(h.Mine))
	router.GET("/api/carts/:cid", am.Authenticate(h.GetByID))
	router.DELETE("/api/carts/:cid", am.Authenticate(h.Clear))
	router.POST("/api/carts/:cid/products/:pid", am.Authenticate(h.AddProduct))
	router.PUT("/api/carts/:cid/products/:pid", am.Authenticate(h.UpdateQuantity))
	router.DELETE("/api/carts/:cid/products/:pid", am.Authenticate(h.RemoveProduct))
	router.POST("/api/carts/:cid/purchase", rl.Limit(am.Authenticate(h.Purchase)))
	router.GET("/api/admin/carts", am.RequireRole(AdminRole, h.AdminAll))
}

func AddTicketRoutes(router *httprouter.Router, h *tickets.Handlers, am *middleware.Auth) {
	router.GET("/api/tickets", am.Authenticate(h.ListMine))
	router.GET("/api/tickets/:code", am.Authenticate(h.GetByCode))
	router.GET("/api/tickets/:code/pdf", am.Authenticate(h.PrintReceipt))
	router.GET("/api/admin/tickets", am.RequireRole(AdminRole, h.AdminAll))
}

func AddStockRoutes(router *httprouter.Router, hub *products.StockHub) {
	router.GET("/ws/stock", hub.Serve)
}
