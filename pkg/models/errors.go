package models

import (
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbiddenTransition = errors.New("forbidden status transition")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrStaleReference      = errors.New("one or more books in cart no longer exist")
	ErrInsufficientStock   = errors.New("insufficient stock")
)

// FieldError describes a single invalid input field
type FieldError struct {
	Field   string
	Message string
	Code    string
}

// InvalidInputError carries per-field details for a rejected request
type InvalidInputError struct {
	Message string
	Fields  []FieldError
}

func (e *InvalidInputError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func (e *InvalidInputError) Unwrap() error { return ErrValidation }

// Invalid builds a single-field InvalidInputError
func Invalid(field, message string) error {
	return &InvalidInputError{
		Message: message,
		Fields:  []FieldError{{Field: field, Message: message, Code: "invalid"}},
	}
}

// InsufficientStockError identifies the book that blocked an order
type InsufficientStockError struct {
	BookID    bson.ObjectID
	Title     string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	name := e.Title
	if name == "" {
		name = e.BookID.Hex()
	}
	return fmt.Sprintf("Insufficient stock for %s. Available: %d, Requested: %d", name, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
