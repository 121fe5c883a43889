package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/smartfarmlink/smartfarm-backend-go/chat"
	"github.com/smartfarmlink/smartfarm-backend-go/middleware"
)

type CreateConversationRequest struct {
	BuyerID   string `json:"buyerId"`
	FarmerID  string `json:"farmerId"`
	ProductID string `json:"productId"`
}

type SendMessageRequest struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Content    string `json:"content"`
}

type MarkSeenRequest struct {
	UserID string `json:"userId"`
}

func (h *Handler) CreateConversation(c echo.Context) error {
	var req CreateConversationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("Invalid request format")
	}
	if middleware.ActingAs(c, req.BuyerID) != nil && middleware.ActingAs(c, req.FarmerID) != nil {
		return echo.NewHTTPError(http.StatusForbidden, "token does not belong to a participant")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	conv, created, err := h.conversations.GetOrCreate(ctx, req.BuyerID, req.FarmerID, req.ProductID)
	if err != nil {
		return err
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	return c.JSON(code, map[string]string{"conversationId": conv.ID})
}

func (h *Handler) GetUserConversations(c echo.Context) error {
	userID := c.Param("userId")
	if err := middleware.ActingAs(c, userID); err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	convs, err := h.conversations.ListForUser(ctx, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"conversations": convs})
}

func (h *Handler) SendMessage(c echo.Context) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("Invalid request format")
	}
	if err := middleware.ActingAs(c, req.SenderID); err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	msg, err := h.chat.Send(ctx, c.Param("id"), chat.SendInput{
		SenderID:   req.SenderID,
		SenderName: req.SenderName,
		Content:    req.Content,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"message": msg})
}

func (h *Handler) GetMessages(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	msgs, err := h.chat.Messages(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"messages": msgs})
}

func (h *Handler) MarkSeen(c echo.Context) error {
	var req MarkSeenRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("Invalid request format")
	}
	if err := middleware.ActingAs(c, req.UserID); err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	updated, err := h.chat.MarkSeen(ctx, c.Param("id"), req.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"updated": updated})
}
