package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bookhaven.ca/bookstore/api/pkg/global"
	"bookhaven.ca/bookstore/api/pkg/models"
)

func (h *Handler) AddToCart(c *gin.Context) {
	var req models.AddToCartRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	cart, err := h.carts.Add(ctx, caller(c).UserID, &req)
	if err != nil {
		respondError(c, notFoundAs(err, "book not found"))
		return
	}
	c.JSON(http.StatusOK, global.MessageResponse("Item added to cart", cart))
}

func (h *Handler) UpdateCartItem(c *gin.Context) {
	bookID, ok := objectIDParam(c, "bookId", "book")
	if !ok {
		return
	}
	var req models.UpdateCartItemRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	cart, err := h.carts.UpdateQuantity(ctx, caller(c).UserID, bookID, &req)
	if err != nil {
		respondError(c, notFoundAs(err, "item not found in cart"))
		return
	}
	c.JSON(http.StatusOK, global.MessageResponse("Cart updated", cart))
}

func (h *Handler) RemoveFromCart(c *gin.Context) {
	bookID, ok := objectIDParam(c, "bookId", "book")
	if !ok {
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	cart, err := h.carts.Remove(ctx, caller(c).UserID, bookID)
	if err != nil {
		respondError(c, notFoundAs(err, "item not found in cart"))
		return
	}
	c.JSON(http.StatusOK, global.MessageResponse("Item removed from cart", cart))
}

func (h *Handler) GetCart(c *gin.Context) {
	ctx, cancel := requestCtx(c)
	defer cancel()

	cart, err := h.carts.Get(ctx, caller(c).UserID)
	if err != nil {
		respondError(c, notFoundAs(err, "cart not found"))
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(cart))
}

func (h *Handler) ClearCart(c *gin.Context) {
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.carts.Clear(ctx, caller(c).UserID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.MessageResponse("Cart cleared", nil))
}
