package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"bookhaven.ca/bookstore/api/pkg/models"
)

type statusCount struct {
	Status models.OrderStatus `bson:"_id"`
	Count  int64              `bson:"count"`
}

type revenueTotal struct {
	Revenue float64 `bson:"revenue"`
}

type salesFacets struct {
	Statuses []statusCount      `bson:"statuses"`
	Revenue  []revenueTotal     `bson:"revenue"`
	TopBooks []models.BookSales `bson:"top_books"`
}

// Summary computes the sales report in one $facet aggregation
func (r *OrderRepo) Summary(ctx context.Context, topN int) (*models.SalesSummary, error) {
	if topN <= 0 {
		topN = 5
	}
	notCancelled := bson.D{{Key: "$match", Value: bson.D{
		{Key: "status", Value: bson.D{{Key: "$ne", Value: models.StatusCancelled}}},
	}}}

	pipeline := bson.A{
		bson.D{{Key: "$facet", Value: bson.D{
			{Key: "statuses", Value: bson.A{
				bson.D{{Key: "$group", Value: bson.D{
					{Key: "_id", Value: "$status"},
					{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
				}}},
			}},
			{Key: "revenue", Value: bson.A{
				notCancelled,
				bson.D{{Key: "$group", Value: bson.D{
					{Key: "_id", Value: nil},
					{Key: "revenue", Value: bson.D{{Key: "$sum", Value: "$total_amount"}}},
				}}},
			}},
			{Key: "top_books", Value: bson.A{
				notCancelled,
				bson.D{{Key: "$unwind", Value: "$order_items"}},
				bson.D{{Key: "$group", Value: bson.D{
					{Key: "_id", Value: "$order_items.book_id"},
					{Key: "quantity", Value: bson.D{{Key: "$sum", Value: "$order_items.quantity"}}},
					{Key: "orders", Value: bson.D{{Key: "$sum", Value: 1}}},
				}}},
				bson.D{{Key: "$sort", Value: bson.D{{Key: "quantity", Value: -1}, {Key: "_id", Value: 1}}}},
				bson.D{{Key: "$limit", Value: topN}},
				bson.D{{Key: "$lookup", Value: bson.D{
					{Key: "from", Value: booksCollection},
					{Key: "localField", Value: "_id"},
					{Key: "foreignField", Value: "_id"},
					{Key: "as", Value: "book"},
				}}},
				bson.D{{Key: "$project", Value: bson.D{
					{Key: "quantity", Value: 1},
					{Key: "orders", Value: 1},
					{Key: "title", Value: bson.D{{Key: "$ifNull", Value: bson.A{
						bson.D{{Key: "$arrayElemAt", Value: bson.A{"$book.title", 0}}},
						"",
					}}}},
				}}},
			}},
		}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sales: %w", err)
	}
	defer cursor.Close(ctx)

	var facets []salesFacets
	if err := cursor.All(ctx, &facets); err != nil {
		return nil, fmt.Errorf("failed to decode sales: %w", err)
	}

	sum := &models.SalesSummary{
		StatusCounts: make(map[models.OrderStatus]int64),
		TopBooks:     []models.BookSales{},
	}
	if len(facets) == 0 {
		return sum, nil
	}
	f := facets[0]
	for _, sc := range f.Statuses {
		sum.StatusCounts[sc.Status] = sc.Count
		sum.TotalOrders += sc.Count
	}
	if len(f.Revenue) > 0 {
		sum.Revenue = f.Revenue[0].Revenue
	}
	if f.TopBooks != nil {
		sum.TopBooks = f.TopBooks
	}
	return sum, nil
}
