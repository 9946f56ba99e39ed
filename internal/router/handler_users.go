package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bookhaven.ca/bookstore/api/pkg/global"
	"bookhaven.ca/bookstore/api/pkg/models"
)

func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	user, err := h.users.Register(ctx, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, global.MessageResponse("User registered successfully", user))
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	pair, err := h.users.Login(ctx, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.MessageResponse("Login successful", pair))
}

func (h *Handler) RefreshToken(c *gin.Context) {
	var req models.RefreshRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	token, err := h.users.Refresh(ctx, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(token))
}

func (h *Handler) GetAllUsers(c *gin.Context) {
	ctx, cancel := requestCtx(c)
	defer cancel()

	users, err := h.users.List(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(users))
}

func (h *Handler) GetMe(c *gin.Context) {
	ctx, cancel := requestCtx(c)
	defer cancel()

	user, err := h.users.Get(ctx, caller(c).UserID)
	if err != nil {
		respondError(c, notFoundAs(err, "user not found"))
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(user))
}

func (h *Handler) GetUserByID(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "user")
	if !ok {
		return
	}
	if !caller(c).CanAccess(id) {
		c.JSON(http.StatusForbidden, global.ErrorResponse("You do not have permission to perform this action", nil))
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	user, err := h.users.Get(ctx, id)
	if err != nil {
		respondError(c, notFoundAs(err, "user not found"))
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(user))
}

func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "user")
	if !ok {
		return
	}
	var req models.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	user, err := h.users.Update(ctx, caller(c), id, &req)
	if err != nil {
		respondError(c, notFoundAs(err, "user not found"))
		return
	}
	c.JSON(http.StatusOK, global.MessageResponse("User updated successfully", user))
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "user")
	if !ok {
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	user, err := h.users.Delete(ctx, id)
	if err != nil {
		respondError(c, notFoundAs(err, "user not found"))
		return
	}
	c.JSON(http.StatusOK, global.MessageResponse("User deleted successfully", user))
}
