package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/smartfarmlink/smartfarm-backend-go/middleware"
	"github.com/smartfarmlink/smartfarm-backend-go/models"
	"github.com/smartfarmlink/smartfarm-backend-go/orders"
)

type CreateOrderRequest struct {
	BuyerID        string   `json:"buyerId"`
	FarmerID       string   `json:"farmerId"`
	ProductID      string   `json:"productId"`
	Quantity       float64  `json:"quantity"`
	Address        string   `json:"address"`
	Notes          *string  `json:"notes"`
	TotalAmount    *float64 `json:"totalAmount"`
	Currency       string   `json:"currency"`
	Merge          bool     `json:"merge"`
	District       string   `json:"district"`
	ContactPhone   string   `json:"contactPhone"`
	DeliveryMethod string   `json:"deliveryMethod"`
	ProductName    string   `json:"productName"`
	Category       string   `json:"category"`
	ImageURL       string   `json:"imageUrl"`
}

type UpdateStatusRequest struct {
	Status            string     `json:"status"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery"`
	ActualDelivery    *time.Time `json:"actualDelivery"`
	TrackingNotes     *string    `json:"trackingNotes"`
}

type UpdatePaymentRequest struct {
	PaymentStatus string  `json:"paymentStatus"`
	PaymentMethod *string `json:"paymentMethod"`
}

// CreateOrder answers 201 for a new order and 200 when the purchase was
// merged into an existing one.
func (h *Handler) CreateOrder(c echo.Context) error {
	var req CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("Invalid request format")
	}
	if err := middleware.ActingAs(c, req.BuyerID); err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.orders.CreateOrGetOrder(ctx, orders.CreateOrderInput{
		BuyerID:        req.BuyerID,
		FarmerID:       req.FarmerID,
		ProductID:      req.ProductID,
		Quantity:       req.Quantity,
		Address:        req.Address,
		Notes:          req.Notes,
		TotalAmount:    req.TotalAmount,
		Currency:       req.Currency,
		District:       req.District,
		ContactPhone:   req.ContactPhone,
		DeliveryMethod: models.DeliveryMethod(req.DeliveryMethod),
		ProductName:    req.ProductName,
		Category:       req.Category,
		ImageURL:       req.ImageURL,
	}, req.Merge)
	if err != nil {
		return err
	}

	code := http.StatusOK
	if res.Created {
		code = http.StatusCreated
	}
	return c.JSON(code, map[string]interface{}{"order": res.Order})
}

func (h *Handler) GetOrder(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	order, err := h.orders.GetOrder(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"order": order})
}

func (h *Handler) UpdateOrderStatus(c echo.Context) error {
	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("Invalid request format")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	order, err := h.orders.UpdateOrderStatus(ctx, c.Param("id"), orders.StatusPatch{
		Status:            req.Status,
		EstimatedDelivery: req.EstimatedDelivery,
		ActualDelivery:    req.ActualDelivery,
		TrackingNotes:     req.TrackingNotes,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"order": order})
}

func (h *Handler) UpdatePaymentStatus(c echo.Context) error {
	var req UpdatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("Invalid request format")
	}

	patch := orders.PaymentPatch{Status: models.PaymentStatus(req.PaymentStatus)}
	if req.PaymentMethod != nil {
		method := models.PaymentMethod(*req.PaymentMethod)
		patch.Method = &method
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	order, err := h.orders.UpdatePaymentStatus(ctx, c.Param("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"order": order})
}

func (h *Handler) GetBuyerOrders(c echo.Context) error {
	buyerID := c.Param("buyerId")
	if err := middleware.ActingAs(c, buyerID); err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	list, err := h.orders.ListForBuyer(ctx, buyerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"orders": list})
}

func (h *Handler) GetSellerOrders(c echo.Context) error {
	sellerID := c.Param("sellerId")
	if err := middleware.ActingAs(c, sellerID); err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	list, err := h.orders.ListForSeller(ctx, sellerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"orders": list})
}
