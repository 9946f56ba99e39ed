package router

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"bookhaven.ca/bookstore/api/internal/service"
	"bookhaven.ca/bookstore/api/pkg/global"
	"bookhaven.ca/bookstore/api/pkg/models"
	"bookhaven.ca/bookstore/api/pkg/store"
)

// Services is everything the HTTP layer calls into
type Services struct {
	Users   *service.UserService
	Catalog *service.CatalogService
	Carts   *service.CartService
	Orders  *service.OrderService
	Reports *service.ReportService
	// Health maps a backend name to its ping, e.g. "mongo", "redis"
	Health map[string]store.Pinger
}

type Handler struct {
	users   *service.UserService
	catalog *service.CatalogService
	carts   *service.CartService
	orders  *service.OrderService
	reports *service.ReportService
	health  map[string]store.Pinger
}

func NewHandler(s Services) *Handler {
	return &Handler{
		users:   s.Users,
		catalog: s.Catalog,
		carts:   s.Carts,
		orders:  s.Orders,
		reports: s.Reports,
		health:  s.Health,
	}
}

// requestCtx bounds every service call made by a handler
func requestCtx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), global.DefaultTimeout)
}

// bindJSON decodes the body and answers 400 itself on malformed JSON.
// Field validation is left to the services.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "Invalid request body", "body", "invalid_json")
		return false
	}
	return true
}

// objectIDParam parses a hex ObjectID path parameter, answering 400 on failure
func objectIDParam(c *gin.Context, name, label string) (bson.ObjectID, bool) {
	id, err := bson.ObjectIDFromHex(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid "+label+" ID format", name, "invalid_format")
		return bson.ObjectID{}, false
	}
	return id, true
}

func pageQuery(c *gin.Context) models.Page {
	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(models.DefaultPage)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(models.DefaultLimit)))
	return models.NewPage(page, limit)
}

// caller returns the identity set by RequireAuth
func caller(c *gin.Context) models.Identity {
	id, _ := identity(c)
	return id
}

func (h *Handler) HealthCheck(c *gin.Context) {
	ctx, cancel := requestCtx(c)
	defer cancel()

	status := map[string]string{"status": "OK"}
	healthy := true
	for name, p := range h.health {
		if err := p.Ping(ctx); err != nil {
			status[name] = "Unavailable"
			healthy = false
			continue
		}
		status[name] = "Connected"
	}
	if !healthy {
		status["status"] = "DEGRADED"
		c.JSON(http.StatusServiceUnavailable, global.APIResponse{Success: false, Message: "Backend connection failed", Data: status})
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(status))
}
