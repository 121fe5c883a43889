package models

import (
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodMTNMoMo      PaymentMethod = "mtn_momo"
	PaymentMethodAirtelMoney  PaymentMethod = "airtel_money"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCash         PaymentMethod = "cash"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodMTNMoMo, PaymentMethodAirtelMoney, PaymentMethodBankTransfer, PaymentMethodCash:
		return true
	}
	return false
}

type DeliveryMethod string

const (
	DeliveryMethodPickup   DeliveryMethod = "pickup"
	DeliveryMethodDelivery DeliveryMethod = "delivery"
)

const DefaultCurrency = "RWF"

type OrderItem struct {
	ProductID    string  `bson:"productId" json:"productId"`
	ProductName  string  `bson:"productName" json:"productName"`
	Quantity     float64 `bson:"quantity" json:"quantity"`
	Unit         string  `bson:"unit" json:"unit"`
	PricePerUnit float64 `bson:"pricePerUnit" json:"pricePerUnit"`
	TotalPrice   float64 `bson:"totalPrice" json:"totalPrice"`
	ImageURL     string  `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	Category     string  `bson:"category" json:"category"`
}

type DeliveryAddress struct {
	District     string `bson:"district" json:"district"`
	Address      string `bson:"address" json:"address"`
	ContactPhone string `bson:"contactPhone" json:"contactPhone"`
}

// Order is stored whole at orders/{id}. Version is the store revision the
// order was read at and is not part of the stored document.
type Order struct {
	ID                string          `bson:"id" json:"id"`
	BuyerID           string          `bson:"buyerId" json:"buyerId"`
	SellerID          string          `bson:"sellerId" json:"sellerId"`
	Items             []OrderItem     `bson:"items" json:"items"`
	TotalAmount       float64         `bson:"totalAmount" json:"totalAmount"`
	Currency          string          `bson:"currency" json:"currency"`
	Status            OrderStatus     `bson:"status" json:"status"`
	PaymentStatus     PaymentStatus   `bson:"paymentStatus" json:"paymentStatus"`
	PaymentMethod     *PaymentMethod  `bson:"paymentMethod" json:"paymentMethod"`
	DeliveryAddress   DeliveryAddress `bson:"deliveryAddress" json:"deliveryAddress"`
	DeliveryMethod    DeliveryMethod  `bson:"deliveryMethod" json:"deliveryMethod"`
	EstimatedDelivery *time.Time      `bson:"estimatedDelivery" json:"estimatedDelivery"`
	ActualDelivery    *time.Time      `bson:"actualDelivery" json:"actualDelivery"`
	TrackingNotes     *string         `bson:"trackingNotes,omitempty" json:"trackingNotes,omitempty"`
	Notes             *string         `bson:"notes" json:"notes"`
	CreatedAt         time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time       `bson:"updatedAt" json:"updatedAt"`
	Version           int64           `bson:"-" json:"version"`
}

// Index is an owner-to-ids set stored at orders_by_buyer/{id},
// orders_by_seller/{id} and user_conversations/{id}.
type Index struct {
	IDs []string `bson:"ids" json:"ids"`
}

func (ix Index) Contains(id string) bool {
	for _, existing := range ix.IDs {
		if existing == id {
			return true
		}
	}
	return false
}

// ValidID reports whether id can name a document or index. Store paths are
// collection/id, so ids may not contain a slash.
func ValidID(id string) bool {
	return id != "" && !strings.Contains(id, "/")
}
