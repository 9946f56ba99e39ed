package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"bookhaven.ca/bookstore/api/pkg/models"
	"bookhaven.ca/bookstore/api/pkg/store"
)

type OrderRepo struct {
	coll  *mongo.Collection
	books *mongo.Collection
}

var _ store.OrderStore = (*OrderRepo)(nil)

func (r *OrderRepo) Create(ctx context.Context, o *models.Order) error {
	if o.ID.IsZero() {
		o.ID = bson.NewObjectID()
	}
	o.SetTimestamps()
	if _, err := r.coll.InsertOne(ctx, o); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (r *OrderRepo) FindByID(ctx context.Context, id bson.ObjectID) (*models.Order, error) {
	var order models.Order
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&order); err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

func (r *OrderRepo) FindByUser(ctx context.Context, userID bson.ObjectID, p models.Page) ([]models.Order, int64, error) {
	orders, total, err := findPage[models.Order](ctx, r.coll, bson.D{{Key: "user_id", Value: userID}}, p)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list user orders: %w", err)
	}
	return orders, total, nil
}

func (r *OrderRepo) FindAll(ctx context.Context, f models.OrderFilter, p models.Page) ([]models.Order, int64, error) {
	filter := bson.D{}
	if f.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: f.Status})
	}
	orders, total, err := findPage[models.Order](ctx, r.coll, filter, p)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

// UpdateStatus matches on the expected current status so only one of two
// racing transitions can win.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id bson.ObjectID, from, to models.OrderStatus) (*models.Order, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	filter := bson.D{{Key: "_id", Value: id}, {Key: "status", Value: from}}
	var order models.Order
	err := r.coll.FindOneAndUpdate(ctx, filter, statusUpdate(to, time.Now()), opts).Decode(&order)
	if err == nil {
		return &order, nil
	}
	if err = notFound(err); err != models.ErrNotFound {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if _, ferr := r.FindByID(ctx, id); ferr != nil {
		return nil, ferr
	}
	return nil, fmt.Errorf("%w: order %s is no longer %s", models.ErrConflict, id.Hex(), from)
}

// statusUpdate sets the status and stamps its timeline field only if it is
// still empty, so re-entering a status keeps the first time it was reached.
func statusUpdate(to models.OrderStatus, now time.Time) mongo.Pipeline {
	set := bson.D{
		{Key: "status", Value: to},
		{Key: "updated_at", Value: now},
	}
	if field := models.TimelineField(to); field != "" {
		set = append(set, bson.E{Key: field, Value: bson.D{
			{Key: "$ifNull", Value: bson.A{"$" + field, now}},
		}})
	}
	return mongo.Pipeline{{{Key: "$set", Value: set}}}
}
