package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bookhaven.ca/bookstore/api/pkg/global"
	"bookhaven.ca/bookstore/api/pkg/models"
)

const (
	idempotencyHeader = "X-Idempotency-Key"
	aiReportTimeout   = 60 * time.Second
)

// CreateOrder places an order from the caller's cart. A replayed
// X-Idempotency-Key answers 200 with the original order instead of 201.
func (h *Handler) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	res, err := h.orders.CreateOrder(ctx, caller(c).UserID, &req, c.GetHeader(idempotencyHeader))
	if err != nil {
		respondError(c, err)
		return
	}
	if res.Replayed {
		c.Header("Idempotent-Replayed", "true")
		c.JSON(http.StatusOK, global.MessageResponse("Order already placed", res.Order))
		return
	}
	c.JSON(http.StatusCreated, global.MessageResponse("Order placed successfully", res.Order))
}

func (h *Handler) GetMyOrders(c *gin.Context) {
	ctx, cancel := requestCtx(c)
	defer cancel()

	page, err := h.orders.GetUserOrders(ctx, caller(c).UserID, pageQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(page))
}

func (h *Handler) GetOrderByID(c *gin.Context) {
	id, ok := objectIDParam(c, "orderId", "order")
	if !ok {
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	order, err := h.orders.GetOrderByID(ctx, caller(c), id)
	if err != nil {
		respondError(c, notFoundAs(err, "order not found"))
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(order))
}

func (h *Handler) CancelOrder(c *gin.Context) {
	id, ok := objectIDParam(c, "orderId", "order")
	if !ok {
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	order, err := h.orders.CancelOrder(ctx, caller(c), id)
	if err != nil {
		respondError(c, notFoundAs(err, "order not found"))
		return
	}
	c.JSON(http.StatusOK, global.MessageResponse("Order cancelled successfully", order))
}

func (h *Handler) GetAllOrders(c *gin.Context) {
	ctx, cancel := requestCtx(c)
	defer cancel()

	filter := models.OrderFilter{Status: models.OrderStatus(c.Query("status"))}
	page, err := h.orders.GetAllOrders(ctx, filter, pageQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(page))
}

func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	id, ok := objectIDParam(c, "orderId", "order")
	if !ok {
		return
	}
	var req models.UpdateOrderStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	order, err := h.orders.UpdateOrderStatus(ctx, id, &req)
	if err != nil {
		respondError(c, notFoundAs(err, "order not found"))
		return
	}
	c.JSON(http.StatusOK, global.MessageResponse("Order status updated successfully", order))
}

// SalesReport is the admin sales summary; ?ai=true attaches the AI narrative
func (h *Handler) SalesReport(c *gin.Context) {
	withAI := c.Query("ai") == "true"
	ctx, cancel := requestCtx(c)
	if withAI {
		cancel()
		ctx, cancel = context.WithTimeout(c.Request.Context(), aiReportTimeout)
	}
	defer cancel()

	report, err := h.reports.Sales(ctx, withAI)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(report))
}
