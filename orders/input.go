package orders

import (
	"strings"
	"time"

	"github.com/smartfarmlink/smartfarm-backend-go/errs"
	"github.com/smartfarmlink/smartfarm-backend-go/models"
)

// CreateOrderInput is a buyer's purchase intent for a single product.
type CreateOrderInput struct {
	BuyerID     string
	FarmerID    string
	ProductID   string
	Quantity    float64
	Address     string
	Notes       *string
	TotalAmount *float64
	Currency    string

	District       string
	ContactPhone   string
	DeliveryMethod models.DeliveryMethod
	ProductName    string
	Category       string
	ImageURL       string
}

func (in CreateOrderInput) normalize() CreateOrderInput {
	in.BuyerID = strings.TrimSpace(in.BuyerID)
	in.FarmerID = strings.TrimSpace(in.FarmerID)
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.Address = strings.TrimSpace(in.Address)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = models.DefaultCurrency
	}
	if in.DeliveryMethod == "" {
		in.DeliveryMethod = models.DeliveryMethodDelivery
	}
	return in
}

func (in CreateOrderInput) Validate() error {
	switch {
	case in.BuyerID == "":
		return errs.Validation("buyerId is required")
	case in.FarmerID == "":
		return errs.Validation("farmerId is required")
	case in.ProductID == "":
		return errs.Validation("productId is required")
	case !models.ValidID(in.BuyerID):
		return errs.Validation("buyerId %q must not contain '/'", in.BuyerID)
	case !models.ValidID(in.FarmerID):
		return errs.Validation("farmerId %q must not contain '/'", in.FarmerID)
	case !models.ValidID(in.ProductID):
		return errs.Validation("productId %q must not contain '/'", in.ProductID)
	case !(in.Quantity > 0):
		return errs.Validation("quantity must be greater than zero")
	case in.Address == "":
		return errs.Validation("address is required")
	case in.TotalAmount != nil && *in.TotalAmount < 0:
		return errs.Validation("totalAmount must not be negative")
	}

	switch in.DeliveryMethod {
	case models.DeliveryMethodPickup, models.DeliveryMethodDelivery:
	default:
		return errs.Validation("unknown deliveryMethod %q", in.DeliveryMethod)
	}
	return nil
}

// StatusPatch is a status change with optional delivery details. Nil fields
// leave the stored values untouched.
type StatusPatch struct {
	Status            string
	EstimatedDelivery *time.Time
	ActualDelivery    *time.Time
	TrackingNotes     *string
}

func (p StatusPatch) Validate() error {
	if strings.TrimSpace(p.Status) == "" {
		return errs.Validation("status is required")
	}
	return nil
}

// Apply writes the patch onto order. Marking an order delivered without an
// explicit actualDelivery stamps it with now.
func (p StatusPatch) Apply(order *models.Order, now time.Time) {
	order.Status = models.OrderStatus(strings.ToLower(strings.TrimSpace(p.Status)))

	if p.EstimatedDelivery != nil {
		t := p.EstimatedDelivery.UTC()
		order.EstimatedDelivery = &t
	}
	switch {
	case p.ActualDelivery != nil:
		t := p.ActualDelivery.UTC()
		order.ActualDelivery = &t
	case order.Status == models.OrderStatusDelivered:
		t := now
		order.ActualDelivery = &t
	}
	if p.TrackingNotes != nil {
		notes := *p.TrackingNotes
		order.TrackingNotes = &notes
	}
	order.UpdatedAt = now
}

// PaymentPatch sets the payment status and, optionally, the method used.
type PaymentPatch struct {
	Status models.PaymentStatus
	Method *models.PaymentMethod
}

func (p PaymentPatch) Validate() error {
	if !p.Status.Valid() {
		return errs.Validation("unknown paymentStatus %q", p.Status)
	}
	if p.Method != nil && !p.Method.Valid() {
		return errs.Validation("unknown paymentMethod %q", *p.Method)
	}
	return nil
}

func (p PaymentPatch) Apply(order *models.Order, now time.Time) {
	order.PaymentStatus = p.Status
	if p.Method != nil {
		method := *p.Method
		order.PaymentMethod = &method
	}
	order.UpdatedAt = now
}
