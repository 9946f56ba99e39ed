package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bookhaven.ca/bookstore/api/internal/logging"
	"bookhaven.ca/bookstore/api/pkg/global"
	"bookhaven.ca/bookstore/api/pkg/models"
)

// NewEngine builds the gin engine with middleware and every route mounted
func NewEngine(cfg global.Config, h *Handler) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), Metrics(), RequestLogger(logging.New("http")))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", idempotencyHeader},
		ExposeHeaders:    []string{"Content-Length", "X-Cache", requestIDKey},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	InitializeRoutes(r, h, cfg)
	return r
}

func InitializeRoutes(r *gin.Engine, h *Handler, cfg global.Config) {
	auth := RequireAuth(h.users)
	admin := RestrictTo(models.RoleAdmin)

	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	users := r.Group("/users")
	{
		users.POST("/register", h.Register)
		users.POST("/login", RateLimit(cfg.RateLimit.LoginPerMinute, cfg.RateLimit.Burst), h.Login)
		users.POST("/refresh-token", h.RefreshToken)
		users.GET("", auth, admin, h.GetAllUsers)
		users.GET("/me", auth, h.GetMe)
		users.GET("/:id", auth, h.GetUserByID)
		users.PATCH("/:id", auth, h.UpdateUser)
		users.DELETE("/:id", auth, admin, h.DeleteUser)
	}

	books := r.Group("/books")
	{
		books.GET("", h.GetAllBooks)
		books.GET("/search", h.SearchBooks)
		books.GET("/:id", h.GetBookByID)
		books.POST("", auth, admin, h.CreateBook)
		books.PATCH("/:id", auth, admin, h.UpdateBook)
		books.DELETE("/:id", auth, admin, h.DeleteBook)
	}

	cart := r.Group("/cart", auth)
	{
		cart.GET("", h.GetCart)
		cart.POST("/add", h.AddToCart)
		cart.PATCH("/items/:bookId", h.UpdateCartItem)
		cart.DELETE("/remove/:bookId", h.RemoveFromCart)
		cart.DELETE("/clear", h.ClearCart)
	}

	orders := r.Group("/orders", auth)
	{
		orders.POST("/create", h.CreateOrder)
		orders.GET("/my-orders", h.GetMyOrders)
		orders.GET("", admin, h.GetAllOrders)
		orders.GET("/:orderId", h.GetOrderByID)
		orders.PATCH("/:orderId/cancel", h.CancelOrder)
		orders.PATCH("/:orderId/status", admin, h.UpdateOrderStatus)
	}

	reports := r.Group("/admin", auth, admin)
	{
		reports.GET("/reports/sales", h.SalesReport)
	}
}
