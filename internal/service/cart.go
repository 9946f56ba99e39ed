package service

import (
	"context"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"

	"bookhaven.ca/bookstore/api/pkg/models"
	"bookhaven.ca/bookstore/api/pkg/store"
)

type CartService struct {
	carts   store.CartStore
	catalog *CatalogService
}

func NewCartService(carts store.CartStore, catalog *CatalogService) *CartService {
	return &CartService{carts: carts, catalog: catalog}
}

// Add merges qty into the caller's cart, creating it on first use
func (s *CartService) Add(ctx context.Context, userID bson.ObjectID, req *models.AddToCartRequest) (*models.CartView, error) {
	if err := models.Validate(req); err != nil {
		return nil, err
	}
	bookID, err := bson.ObjectIDFromHex(req.BookID)
	if err != nil {
		return nil, models.Invalid("book_id", "Invalid book ID format")
	}
	if _, _, err := s.catalog.Get(ctx, bookID); err != nil {
		return nil, err
	}
	cart, err := s.carts.UpsertLineItem(ctx, userID, bookID, req.Quantity)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID, bookID bson.ObjectID, req *models.UpdateCartItemRequest) (*models.CartView, error) {
	if err := models.Validate(req); err != nil {
		return nil, err
	}
	cart, err := s.carts.SetQuantity(ctx, userID, bookID, req.Quantity)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

func (s *CartService) Remove(ctx context.Context, userID, bookID bson.ObjectID) (*models.CartView, error) {
	cart, err := s.carts.RemoveLineItem(ctx, userID, bookID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

// Get returns ErrNotFound when the user has no cart
func (s *CartService) Get(ctx context.Context, userID bson.ObjectID) (*models.CartView, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, models.ErrNotFound
	}
	return s.view(ctx, cart)
}

func (s *CartService) Clear(ctx context.Context, userID bson.ObjectID) error {
	return s.carts.Delete(ctx, userID)
}

// view joins the cart with current book data. Lines whose book has been
// removed keep a nil Book and contribute nothing to the total.
func (s *CartService) view(ctx context.Context, cart *models.Cart) (*models.CartView, error) {
	books, err := s.catalog.FindByIDs(ctx, cart.BookIDs())
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	v := &models.CartView{
		UserID:    cart.UserID,
		Items:     make([]models.CartLineView, 0, len(cart.Items)),
		ItemCount: cart.ItemCount(),
		UpdatedAt: cart.UpdatedAt,
	}
	for _, it := range cart.Items {
		line := models.CartLineView{Book: books[it.BookID], Quantity: it.Quantity}
		if line.Book != nil {
			sub := decimal.NewFromFloat(line.Book.Price).Mul(decimal.NewFromInt(int64(it.Quantity)))
			line.Subtotal = sub.InexactFloat64()
			total = total.Add(sub)
		}
		v.Items = append(v.Items, line)
	}
	v.TotalValue = total.InexactFloat64()
	return v, nil
}
