package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders created through checkout or a merge miss.",
	})

	OrdersMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_merged_total",
		Help: "Purchases folded into an existing pending or processing order.",
	})

	OrderStatusUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_updates_total",
		Help: "Order status updates by new status.",
	}, []string{"status"})

	MessageTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "message_status_transitions_total",
		Help: "Message delivery status transitions by target status.",
	}, []string{"status"})

	StoreConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_conflicts_total",
		Help: "Optimistic concurrency conflicts by operation.",
	}, []string{"op"})
)

// Handler exposes the default registry for scraping.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
