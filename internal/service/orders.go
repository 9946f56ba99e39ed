package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"

	"bookhaven.ca/bookstore/api/internal/logging"
	"bookhaven.ca/bookstore/api/pkg/events"
	"bookhaven.ca/bookstore/api/pkg/models"
	"bookhaven.ca/bookstore/api/pkg/store"
)

const publishTimeout = 5 * time.Second

// OrderService turns carts into orders and manages their lifecycle
type OrderService struct {
	carts     store.CartStore
	orders    store.OrderStore
	users     store.UserStore
	catalog   *CatalogService
	idem      store.IdempotencyStore
	publisher events.Publisher
}

type OrderOption func(*OrderService)

// WithIdempotency enables X-Idempotency-Key handling on CreateOrder
func WithIdempotency(idem store.IdempotencyStore) OrderOption {
	return func(s *OrderService) { s.idem = idem }
}

// WithPublisher sends lifecycle events after each committed change
func WithPublisher(p events.Publisher) OrderOption {
	return func(s *OrderService) { s.publisher = p }
}

func NewOrderService(carts store.CartStore, orders store.OrderStore, users store.UserStore, catalog *CatalogService, opts ...OrderOption) *OrderService {
	s := &OrderService{carts: carts, orders: orders, users: users, catalog: catalog}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceResult reports whether an idempotent retry was answered from a
// previously created order.
type PlaceResult struct {
	Order    *models.OrderView
	Replayed bool
}

// CreateOrder places an order from the user's cart. Every line is checked
// before anything is written; stock is then taken with guarded decrements
// and returned if a later step fails, so a failed call leaves stock as it was.
func (s *OrderService) CreateOrder(ctx context.Context, userID bson.ObjectID, req *models.CreateOrderRequest, idemKey string) (*PlaceResult, error) {
	if err := models.Validate(req); err != nil {
		return nil, shippingAddressError(err)
	}

	idemKey = strings.TrimSpace(idemKey)
	if idemKey != "" && s.idem != nil {
		scope := userID.Hex()
		if prev, ok, err := s.idem.Recall(ctx, scope, idemKey); err != nil {
			return nil, err
		} else if ok {
			return s.replay(ctx, prev)
		}
		locked, err := s.idem.TryLock(ctx, scope, idemKey)
		if err != nil {
			return nil, err
		}
		if !locked {
			return nil, fmt.Errorf("%w: a request with this idempotency key is already in progress", models.ErrConflict)
		}
		view, err := s.placeOrder(ctx, userID, req)
		if err != nil {
			if rerr := s.idem.Release(context.WithoutCancel(ctx), scope, idemKey); rerr != nil {
				logging.FromCtx(ctx).Warn("failed to release idempotency key", "err", rerr)
			}
			return nil, err
		}
		if err := s.idem.Remember(ctx, scope, idemKey, view.ID.Hex()); err != nil {
			logging.FromCtx(ctx).Warn("failed to remember idempotency key", "order_id", view.ID.Hex(), "err", err)
		}
		return &PlaceResult{Order: view}, nil
	}

	view, err := s.placeOrder(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	return &PlaceResult{Order: view}, nil
}

func (s *OrderService) replay(ctx context.Context, orderHex string) (*PlaceResult, error) {
	id, err := bson.ObjectIDFromHex(orderHex)
	if err != nil {
		return nil, fmt.Errorf("corrupt idempotency record %q: %w", orderHex, err)
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view, err := s.enrichOne(ctx, order)
	if err != nil {
		return nil, err
	}
	return &PlaceResult{Order: view, Replayed: true}, nil
}

func shippingAddressError(err error) error {
	var inv *models.InvalidInputError
	if errors.As(err, &inv) {
		inv.Message = "Complete shipping address is required"
		return inv
	}
	return err
}

func (s *OrderService) placeOrder(ctx context.Context, userID bson.ObjectID, req *models.CreateOrderRequest) (*models.OrderView, error) {
	log := logging.FromCtx(ctx).With("user_id", userID.Hex())

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil || len(cart.Items) == 0 {
		orderRejections.WithLabelValues("empty_cart").Inc()
		return nil, models.ErrEmptyCart
	}

	books, err := s.catalog.FindByIDs(ctx, cart.BookIDs())
	if err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(cart.Items))
	total := decimal.Zero
	for _, line := range cart.Items {
		book, ok := books[line.BookID]
		if !ok {
			orderRejections.WithLabelValues("stale_reference").Inc()
			return nil, models.ErrStaleReference
		}
		if !book.InStock(line.Quantity) {
			orderRejections.WithLabelValues("insufficient_stock").Inc()
			return nil, &models.InsufficientStockError{
				BookID:    book.ID,
				Title:     book.Title,
				Available: book.Stock,
				Requested: line.Quantity,
			}
		}
		items = append(items, models.OrderItem{BookID: book.ID, Quantity: line.Quantity})
		total = total.Add(decimal.NewFromFloat(book.Price).Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	if err := s.reserve(ctx, items); err != nil {
		if errors.Is(err, models.ErrInsufficientStock) {
			orderRejections.WithLabelValues("stock_conflict").Inc()
			log.Info("stock changed during checkout", "err", err)
		}
		return nil, err
	}

	order := &models.Order{
		UserID:          userID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		TotalAmount:     total.Round(2).InexactFloat64(),
		Status:          models.StatusPending,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		s.restock(ctx, items)
		return nil, err
	}

	if err := s.carts.Delete(ctx, userID); err != nil {
		// the order stands; a leftover cart only costs the user a manual clear
		log.Error("failed to clear cart after order", "order_id", order.ID.Hex(), "err", err)
	}

	ordersPlaced.Inc()
	orderRevenue.Add(order.TotalAmount)
	log.Info("order placed", "order_id", order.ID.Hex(), "items", len(items), "total", order.TotalAmount)
	s.publish(ctx, events.NewOrderEvent(events.OrderCreated, order, ""))

	return s.view(ctx, order, books)
}

// reserve takes stock for every item. If one decrement is refused the ones
// already applied are given back before returning.
func (s *OrderService) reserve(ctx context.Context, items []models.OrderItem) error {
	for i, it := range items {
		if _, err := s.catalog.AdjustStock(ctx, it.BookID, -it.Quantity); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				err = models.ErrStaleReference
			}
			s.restock(ctx, items[:i])
			return err
		}
	}
	return nil
}

// restock returns item quantities one book at a time. It runs detached from
// the request context so a client disconnect cannot strand stock.
func (s *OrderService) restock(ctx context.Context, items []models.OrderItem) {
	log := logging.FromCtx(ctx)
	ctx = context.WithoutCancel(ctx)
	for _, it := range items {
		if _, err := s.catalog.AdjustStock(ctx, it.BookID, it.Quantity); err != nil {
			log.Error("failed to restore stock", "book_id", it.BookID.Hex(), "quantity", it.Quantity, "err", err)
		}
	}
}

// CancelOrder cancels an order and returns its stock. Regular users can
// only cancel their own pending orders; other users' orders look missing.
func (s *OrderService) CancelOrder(ctx context.Context, actor models.Identity, orderID bson.ObjectID) (*models.OrderView, error) {
	order, err := s.visibleOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == models.StatusCancelled {
		return nil, fmt.Errorf("%w: order is already cancelled and its stock was restored, cancelled orders are final", models.ErrForbiddenTransition)
	}
	if !actor.IsAdmin() && order.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: order can only be cancelled when status is pending", models.ErrForbiddenTransition)
	}

	updated, err := s.transition(ctx, order, models.StatusCancelled)
	if err != nil {
		return nil, err
	}
	ordersCancelled.WithLabelValues(string(actor.Role)).Inc()
	return s.enrichOne(ctx, updated)
}

// UpdateOrderStatus is the admin status change. Any status may follow any
// other except that a cancelled order is final; moving to cancelled
// returns the stock.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID bson.ObjectID, req *models.UpdateOrderStatusRequest) (*models.OrderView, error) {
	if !req.Status.Valid() {
		return nil, invalidStatus(req.Status)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == req.Status {
		return s.enrichOne(ctx, order)
	}
	if order.Status == models.StatusCancelled {
		return nil, fmt.Errorf("%w: a cancelled order cannot change status, its stock was already restored and cancelling again would restore it twice", models.ErrForbiddenTransition)
	}

	updated, err := s.transition(ctx, order, req.Status)
	if err != nil {
		return nil, err
	}
	orderStatusChanges.WithLabelValues(string(req.Status)).Inc()
	return s.enrichOne(ctx, updated)
}

// transition performs the compare-and-set status change and its side effects
func (s *OrderService) transition(ctx context.Context, order *models.Order, to models.OrderStatus) (*models.Order, error) {
	from := order.Status
	updated, err := s.orders.UpdateStatus(ctx, order.ID, from, to)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("%w: order status changed concurrently, retry", models.ErrConflict)
		}
		return nil, err
	}

	evt := events.OrderStatusUpdated
	if to == models.StatusCancelled {
		s.restock(ctx, updated.Items)
		evt = events.OrderCancelled
	}
	logging.FromCtx(ctx).Info("order status changed", "order_id", order.ID.Hex(), "from", from, "to", to)
	s.publish(ctx, events.NewOrderEvent(evt, updated, from))
	return updated, nil
}

func invalidStatus(st models.OrderStatus) error {
	valid := make([]string, 0, len(models.OrderStatuses))
	for _, v := range models.OrderStatuses {
		valid = append(valid, string(v))
	}
	msg := "Invalid status. Valid statuses: " + strings.Join(valid, ", ")
	return &models.InvalidInputError{
		Message: msg,
		Fields:  []models.FieldError{{Field: "status", Message: msg, Code: "oneof"}},
	}
}

func (s *OrderService) visibleOrder(ctx context.Context, actor models.Identity, orderID bson.ObjectID) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(order.UserID) {
		return nil, models.ErrNotFound
	}
	return order, nil
}

func (s *OrderService) GetOrderByID(ctx context.Context, actor models.Identity, orderID bson.ObjectID) (*models.OrderView, error) {
	order, err := s.visibleOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	return s.enrichOne(ctx, order)
}

func (s *OrderService) GetUserOrders(ctx context.Context, userID bson.ObjectID, p models.Page) (*models.OrderPage, error) {
	orders, total, err := s.orders.FindByUser(ctx, userID, p)
	if err != nil {
		return nil, err
	}
	return s.page(ctx, orders, total, p)
}

func (s *OrderService) GetAllOrders(ctx context.Context, f models.OrderFilter, p models.Page) (*models.OrderPage, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalidStatus(f.Status)
	}
	orders, total, err := s.orders.FindAll(ctx, f, p)
	if err != nil {
		return nil, err
	}
	return s.page(ctx, orders, total, p)
}

func (s *OrderService) page(ctx context.Context, orders []models.Order, total int64, p models.Page) (*models.OrderPage, error) {
	views, err := s.enrich(ctx, orders)
	if err != nil {
		return nil, err
	}
	return &models.OrderPage{Orders: views, Pagination: models.NewPagination(p, total)}, nil
}

func (s *OrderService) enrichOne(ctx context.Context, o *models.Order) (*models.OrderView, error) {
	views, err := s.enrich(ctx, []models.Order{*o})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// enrich joins orders with user and book display fields using one lookup
// per collection.
func (s *OrderService) enrich(ctx context.Context, orders []models.Order) ([]models.OrderView, error) {
	userIDs := make([]bson.ObjectID, 0, len(orders))
	bookIDs := make([]bson.ObjectID, 0)
	seenUsers := make(map[bson.ObjectID]bool)
	seenBooks := make(map[bson.ObjectID]bool)
	for _, o := range orders {
		if !seenUsers[o.UserID] {
			seenUsers[o.UserID] = true
			userIDs = append(userIDs, o.UserID)
		}
		for _, it := range o.Items {
			if !seenBooks[it.BookID] {
				seenBooks[it.BookID] = true
				bookIDs = append(bookIDs, it.BookID)
			}
		}
	}

	books, err := s.catalog.FindByIDs(ctx, bookIDs)
	if err != nil {
		return nil, err
	}
	users, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	views := make([]models.OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, buildView(&orders[i], users[orders[i].UserID], books))
	}
	return views, nil
}

func (s *OrderService) view(ctx context.Context, o *models.Order, books map[bson.ObjectID]*models.Book) (*models.OrderView, error) {
	user, err := s.users.FindByID(ctx, o.UserID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	v := buildView(o, user, books)
	return &v, nil
}

func buildView(o *models.Order, user *models.User, books map[bson.ObjectID]*models.Book) models.OrderView {
	v := models.OrderView{
		ID:              o.ID,
		Items:           make([]models.OrderItemView, 0, len(o.Items)),
		ShippingAddress: o.ShippingAddress,
		TotalAmount:     o.TotalAmount,
		Status:          o.Status,
		Timeline:        o.Timeline,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if user != nil {
		v.User = user.Summary()
	}
	for _, it := range o.Items {
		iv := models.OrderItemView{BookID: it.BookID, Quantity: it.Quantity}
		if b, ok := books[it.BookID]; ok {
			iv.Book = b.Summary()
		}
		v.Items = append(v.Items, iv)
	}
	return v
}

// publish never fails the caller; the change is already committed
func (s *OrderService) publish(ctx context.Context, e events.OrderEvent) {
	if s.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pctx, e); err != nil {
		logging.FromCtx(ctx).Error("failed to publish order event", "type", e.Type, "order_id", e.OrderID.Hex(), "err", err)
	}
}
