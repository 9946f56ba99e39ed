package memory

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"

	"bookhaven.ca/bookstore/api/pkg/models"
	"bookhaven.ca/bookstore/api/pkg/store"
)

type Orders struct{ s *Store }

var _ store.OrderStore = (*Orders)(nil)

func (r *Orders) Create(ctx context.Context, o *models.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if o.ID.IsZero() {
		o.ID = bson.NewObjectID()
	}
	o.SetTimestamps()
	r.s.orders[o.ID] = *o.Clone()
	return nil
}

func (r *Orders) FindByID(ctx context.Context, id bson.ObjectID) (*models.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *Orders) FindByUser(ctx context.Context, userID bson.ObjectID, p models.Page) ([]models.Order, int64, error) {
	return r.page(func(o *models.Order) bool { return o.UserID == userID }, p)
}

func (r *Orders) FindAll(ctx context.Context, f models.OrderFilter, p models.Page) ([]models.Order, int64, error) {
	return r.page(func(o *models.Order) bool { return f.Status == "" || o.Status == f.Status }, p)
}

// page returns the matching orders newest first
func (r *Orders) page(match func(*models.Order) bool, p models.Page) ([]models.Order, int64, error) {
	r.s.mu.RLock()
	all := make([]models.Order, 0)
	for _, o := range r.s.orders {
		if match(&o) {
			all = append(all, *o.Clone())
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.Hex() > all[j].ID.Hex()
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := int64(len(all))
	start := min(max(p.Skip(), 0), len(all))
	end := min(start+p.Limit, len(all))
	return all[start:end], total, nil
}

func (r *Orders) UpdateStatus(ctx context.Context, id bson.ObjectID, from, to models.OrderStatus) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if o.Status != from {
		return nil, models.ErrConflict
	}
	o.ApplyStatus(to, r.s.now())
	r.s.orders[id] = o
	return o.Clone(), nil
}

func (r *Orders) Summary(ctx context.Context, topN int) (*models.SalesSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sum := &models.SalesSummary{StatusCounts: make(map[models.OrderStatus]int64)}
	revenue := decimal.Zero
	sales := make(map[bson.ObjectID]*models.BookSales)
	for _, o := range r.s.orders {
		sum.TotalOrders++
		sum.StatusCounts[o.Status]++
		if o.Status == models.StatusCancelled {
			continue
		}
		revenue = revenue.Add(decimal.NewFromFloat(o.TotalAmount))
		for _, it := range o.Items {
			bs, ok := sales[it.BookID]
			if !ok {
				bs = &models.BookSales{BookID: it.BookID}
				if b, found := r.s.books[it.BookID]; found {
					bs.Title = b.Title
				}
				sales[it.BookID] = bs
			}
			bs.Quantity += it.Quantity
			bs.Orders++
		}
	}
	sum.Revenue = revenue.InexactFloat64()

	top := make([]models.BookSales, 0, len(sales))
	for _, bs := range sales {
		top = append(top, *bs)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Quantity == top[j].Quantity {
			return top[i].BookID.Hex() < top[j].BookID.Hex()
		}
		return top[i].Quantity > top[j].Quantity
	})
	if topN > 0 && len(top) > topN {
		top = top[:topN]
	}
	sum.TopBooks = top
	return sum, nil
}
