package router

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"bookhaven.ca/bookstore/api/internal/logging"
	"bookhaven.ca/bookstore/api/pkg/global"
	"bookhaven.ca/bookstore/api/pkg/models"
)

// respondError maps a service error onto a status and the response envelope.
// Anything unrecognised is logged and answered with a generic 500.
func respondError(c *gin.Context, err error) {
	var inv *models.InvalidInputError
	var stock *models.InsufficientStockError

	switch {
	case errors.As(err, &inv):
		c.JSON(http.StatusBadRequest, global.ErrorResponse(inv.Message, fieldErrors(inv.Fields)))
	case errors.As(err, &stock):
		c.JSON(http.StatusBadRequest, global.ErrorResponse(stock.Error(), []global.ValidationError{
			{Field: "book_id", Message: stock.BookID.Hex(), Code: "insufficient_stock"},
		}))
	case errors.Is(err, models.ErrEmptyCart),
		errors.Is(err, models.ErrStaleReference),
		errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, global.ErrorResponse(message(err), nil))
	case errors.Is(err, models.ErrUnauthenticated):
		c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
		c.JSON(http.StatusUnauthorized, global.ErrorResponse(message(err), nil))
	case errors.Is(err, models.ErrUnauthorized), errors.Is(err, models.ErrForbiddenTransition):
		c.JSON(http.StatusForbidden, global.ErrorResponse(message(err), nil))
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, global.ErrorResponse(message(err), nil))
	case errors.Is(err, models.ErrConflict):
		c.JSON(http.StatusConflict, global.ErrorResponse(message(err), nil))
	default:
		_ = c.Error(err)
		logging.From(c).Error("request failed", "err", err)
		c.JSON(http.StatusInternalServerError, global.ErrorResponse("Internal server error", nil))
	}
}

func fieldErrors(fields []models.FieldError) []global.ValidationError {
	if len(fields) == 0 {
		return nil
	}
	out := make([]global.ValidationError, 0, len(fields))
	for _, f := range fields {
		out = append(out, global.ValidationError{Field: f.Field, Message: f.Message, Code: f.Code})
	}
	return out
}

func badRequest(c *gin.Context, msg, field, code string) {
	c.JSON(http.StatusBadRequest, global.ErrorResponse(msg, []global.ValidationError{
		{Field: field, Message: msg, Code: code},
	}))
}

var sentinels = []error{
	models.ErrValidation,
	models.ErrNotFound,
	models.ErrConflict,
	models.ErrUnauthenticated,
	models.ErrUnauthorized,
	models.ErrForbiddenTransition,
}

// message drops a leading "<sentinel>: " so clients see only the detail
func message(err error) string {
	msg := err.Error()
	for _, s := range sentinels {
		if p := s.Error() + ": "; strings.HasPrefix(msg, p) {
			msg = msg[len(p):]
			break
		}
	}
	if msg == "" {
		return msg
	}
	r, size := utf8.DecodeRuneInString(msg)
	return string(unicode.ToUpper(r)) + msg[size:]
}

// notFoundAs names the missing resource when the store returned the bare sentinel
func notFoundAs(err error, what string) error {
	if err == models.ErrNotFound {
		return fmt.Errorf("%w: %s", models.ErrNotFound, what)
	}
	return err
}
