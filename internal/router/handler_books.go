package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bookhaven.ca/bookstore/api/pkg/global"
	"bookhaven.ca/bookstore/api/pkg/models"
)

func (h *Handler) CreateBook(c *gin.Context) {
	var req models.CreateBookRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	book, err := h.catalog.Create(ctx, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, global.MessageResponse("Book created successfully", book))
}

func (h *Handler) GetAllBooks(c *gin.Context) {
	ctx, cancel := requestCtx(c)
	defer cancel()

	books, err := h.catalog.Search(ctx, models.BookFilter{})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(books))
}

func (h *Handler) SearchBooks(c *gin.Context) {
	var f models.BookFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		badRequest(c, "Invalid search parameters", "query", "invalid_format")
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	books, err := h.catalog.Search(ctx, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(books))
}

// GetBookByID serves from the read-through cache and reports HIT or MISS
// in X-Cache.
func (h *Handler) GetBookByID(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "book")
	if !ok {
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	book, cached, err := h.catalog.Get(ctx, id)
	if err != nil {
		respondError(c, notFoundAs(err, "book not found"))
		return
	}
	if cached {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.JSON(http.StatusOK, global.SuccessResponse(book))
}

func (h *Handler) UpdateBook(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "book")
	if !ok {
		return
	}
	var req models.UpdateBookRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	book, err := h.catalog.Update(ctx, id, &req)
	if err != nil {
		respondError(c, notFoundAs(err, "book not found"))
		return
	}
	c.JSON(http.StatusOK, global.MessageResponse("Book updated successfully", book))
}

func (h *Handler) DeleteBook(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "book")
	if !ok {
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	book, err := h.catalog.Delete(ctx, id)
	if err != nil {
		respondError(c, notFoundAs(err, "book not found"))
		return
	}
	c.JSON(http.StatusOK, global.MessageResponse("Book deleted successfully", book))
}
