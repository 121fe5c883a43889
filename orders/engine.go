// Package orders turns purchase intents into persisted orders and applies
// status and payment changes to them.
package orders

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smartfarmlink/smartfarm-backend-go/errs"
	"github.com/smartfarmlink/smartfarm-backend-go/events"
	"github.com/smartfarmlink/smartfarm-backend-go/metrics"
	"github.com/smartfarmlink/smartfarm-backend-go/models"
	"github.com/smartfarmlink/smartfarm-backend-go/utils"
)

// Repository is the storage the engine needs. store.OrderRepository
// implements it.
type Repository interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	BuyerOrderIDs(ctx context.Context, buyerID string) ([]string, error)
	ListOrdersForBuyer(ctx context.Context, buyerID string) ([]models.Order, error)
	ListOrdersForSeller(ctx context.Context, sellerID string) ([]models.Order, error)
	SaveOrder(ctx context.Context, order *models.Order) error
}

type Engine struct {
	repo       Repository
	ids        utils.IDGenerator
	publisher  events.Publisher
	maxRetries int
	now        func() time.Time
}

func NewEngine(repo Repository, ids utils.IDGenerator, publisher events.Publisher, maxRetries int) *Engine {
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Engine{
		repo:       repo,
		ids:        ids,
		publisher:  publisher,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// Result is the outcome of CreateOrGetOrder. Created is false when the
// purchase was merged into an existing order.
type Result struct {
	Order   *models.Order
	Created bool
}

// CreateOrGetOrder persists a purchase. With merge set, the buyer's orders are
// scanned in index order and the first pending or processing order whose
// first item is the same product absorbs the quantity. Otherwise, or when no
// order qualifies, a new single-item order is created.
func (e *Engine) CreateOrGetOrder(ctx context.Context, in CreateOrderInput, merge bool) (*Result, error) {
	in = in.normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if merge {
		order, err := e.mergeWithRetry(ctx, in)
		if err != nil {
			return nil, err
		}
		if order != nil {
			metrics.OrdersMerged.Inc()
			e.publish(ctx, events.OrderMerged, order)
			return &Result{Order: order, Created: false}, nil
		}
	}

	order := e.newOrder(in)
	if err := e.repo.SaveOrder(ctx, order); err != nil {
		return nil, errs.Storage("create order", err)
	}
	metrics.OrdersCreated.Inc()
	e.publish(ctx, events.OrderCreated, order)
	return &Result{Order: order, Created: true}, nil
}

// mergeWithRetry reruns the whole scan when the chosen order changed under
// us, so concurrent merges into one order all land.
func (e *Engine) mergeWithRetry(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	for attempt := 0; ; attempt++ {
		order, err := e.mergeInto(ctx, in)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, errs.ErrConflict) {
			return nil, err
		}

		metrics.StoreConflicts.WithLabelValues("order_merge").Inc()
		if attempt >= e.maxRetries {
			return nil, errs.Exhausted("merge order", err)
		}
	}
}

func (e *Engine) mergeInto(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	ids, err := e.repo.BuyerOrderIDs(ctx, in.BuyerID)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		order, err := e.repo.GetOrder(ctx, id)
		if errors.Is(err, errs.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !mergeEligible(order, in.ProductID) {
			continue
		}

		applyMerge(order, in.Quantity, e.now().UTC())
		if err := e.repo.SaveOrder(ctx, order); err != nil {
			return nil, err
		}
		return order, nil
	}
	return nil, nil
}

// mergeEligible only ever looks at the first item.
func mergeEligible(order *models.Order, productID string) bool {
	if len(order.Items) == 0 || order.Items[0].ProductID != productID {
		return false
	}
	status := models.OrderStatus(strings.ToLower(string(order.Status)))
	return status == models.OrderStatusPending || status == models.OrderStatusProcessing
}

func applyMerge(order *models.Order, quantity float64, now time.Time) {
	item := &order.Items[0]
	newQuantity := decimal.NewFromFloat(item.Quantity).Add(decimal.NewFromFloat(quantity))
	itemTotal := decimal.NewFromFloat(item.PricePerUnit).Mul(newQuantity)

	total := itemTotal
	for _, rest := range order.Items[1:] {
		total = total.Add(decimal.NewFromFloat(rest.TotalPrice))
	}

	item.Quantity = newQuantity.InexactFloat64()
	item.TotalPrice = itemTotal.InexactFloat64()
	order.TotalAmount = total.InexactFloat64()
	order.UpdatedAt = now
}

func (e *Engine) newOrder(in CreateOrderInput) *models.Order {
	now := e.now().UTC()

	var pricePerUnit, total decimal.Decimal
	if in.TotalAmount != nil {
		total = decimal.NewFromFloat(*in.TotalAmount)
		pricePerUnit = total.Div(decimal.NewFromFloat(in.Quantity))
	}

	return &models.Order{
		ID:       e.ids.NewID(),
		BuyerID:  in.BuyerID,
		SellerID: in.FarmerID,
		Items: []models.OrderItem{{
			ProductID:    in.ProductID,
			ProductName:  in.ProductName,
			Quantity:     in.Quantity,
			Unit:         "kg",
			PricePerUnit: pricePerUnit.InexactFloat64(),
			TotalPrice:   total.InexactFloat64(),
			ImageURL:     in.ImageURL,
			Category:     in.Category,
		}},
		TotalAmount:   total.InexactFloat64(),
		Currency:      in.Currency,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		PaymentMethod: nil,
		DeliveryAddress: models.DeliveryAddress{
			District:     in.District,
			Address:      in.Address,
			ContactPhone: in.ContactPhone,
		},
		DeliveryMethod: in.DeliveryMethod,
		Notes:          in.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// UpdateOrderStatus applies patch to the order. Any non-empty status is
// accepted and stored lowercased; no transition table is enforced.
func (e *Engine) UpdateOrderStatus(ctx context.Context, id string, patch StatusPatch) (*models.Order, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	order, err := e.update(ctx, "update order status", id, func(o *models.Order, now time.Time) {
		patch.Apply(o, now)
	})
	if err != nil {
		return nil, err
	}

	metrics.OrderStatusUpdates.WithLabelValues(statusLabel(order.Status)).Inc()
	e.publish(ctx, events.OrderStatusChanged, order)
	return order, nil
}

// UpdatePaymentStatus records a payment outcome reported by the mock gateway.
func (e *Engine) UpdatePaymentStatus(ctx context.Context, id string, patch PaymentPatch) (*models.Order, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	order, err := e.update(ctx, "update payment status", id, func(o *models.Order, now time.Time) {
		patch.Apply(o, now)
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events.OrderPaymentChanged, order)
	return order, nil
}

// update runs a read-modify-write against the order, retrying on version
// conflicts.
func (e *Engine) update(ctx context.Context, op, id string, mutate func(*models.Order, time.Time)) (*models.Order, error) {
	for attempt := 0; ; attempt++ {
		order, err := e.repo.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}

		mutate(order, e.now().UTC())
		err = e.repo.SaveOrder(ctx, order)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, errs.ErrConflict) {
			return nil, errs.Storage(op, err)
		}

		metrics.StoreConflicts.WithLabelValues("order_update").Inc()
		if attempt >= e.maxRetries {
			return nil, errs.Exhausted(op+" "+id, err)
		}
	}
}

func (e *Engine) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errs.Validation("order id is required")
	}
	return e.repo.GetOrder(ctx, id)
}

func (e *Engine) ListForBuyer(ctx context.Context, buyerID string) ([]models.Order, error) {
	if strings.TrimSpace(buyerID) == "" {
		return nil, errs.Validation("buyerId is required")
	}
	return e.repo.ListOrdersForBuyer(ctx, buyerID)
}

func (e *Engine) ListForSeller(ctx context.Context, sellerID string) ([]models.Order, error) {
	if strings.TrimSpace(sellerID) == "" {
		return nil, errs.Validation("sellerId is required")
	}
	return e.repo.ListOrdersForSeller(ctx, sellerID)
}

func (e *Engine) publish(ctx context.Context, eventType string, order *models.Order) {
	if err := e.publisher.Publish(ctx, events.NewOrderEvent(eventType, order, e.now().UTC())); err != nil {
		log.Printf("Failed to publish %s for order %s: %v", eventType, order.ID, err)
	}
}

// statusLabel keeps free-form statuses from inflating metric cardinality.
func statusLabel(status models.OrderStatus) string {
	switch status {
	case models.OrderStatusPending, models.OrderStatusProcessing, models.OrderStatusShipped,
		models.OrderStatusDelivered, models.OrderStatusCancelled:
		return string(status)
	}
	return "other"
}
