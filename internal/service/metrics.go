package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookstore_orders_placed_total",
		Help: "Orders successfully placed",
	})

	ordersCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookstore_orders_cancelled_total",
			Help: "Orders cancelled, by acting role",
		},
		[]string{"role"},
	)

	orderStatusChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookstore_order_status_changes_total",
			Help: "Administrative order status changes, by target status",
		},
		[]string{"status"},
	)

	orderRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookstore_order_rejections_total",
			Help: "Order placements rejected, by reason",
		},
		[]string{"reason"},
	)

	orderRevenue = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookstore_order_revenue_total",
		Help: "Sum of order totals at placement",
	})

	bookCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookstore_book_cache_lookups_total",
			Help: "Book cache lookups, by result",
		},
		[]string{"result"},
	)
)
