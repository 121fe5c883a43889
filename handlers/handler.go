package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/smartfarmlink/smartfarm-backend-go/chat"
	"github.com/smartfarmlink/smartfarm-backend-go/errs"
	"github.com/smartfarmlink/smartfarm-backend-go/orders"
	"github.com/smartfarmlink/smartfarm-backend-go/store"
)

const requestTimeout = 10 * time.Second

type Handler struct {
	orders        *orders.Engine
	conversations *store.ConversationRepository
	chat          *chat.Service
}

func New(engine *orders.Engine, conversations *store.ConversationRepository, chatService *chat.Service) *Handler {
	return &Handler{orders: engine, conversations: conversations, chat: chatService}
}

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// ErrorHandler renders errs kinds as {"error", "kind"} with the matching
// status code. Echo's own HTTP errors keep their code.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		respond(c, he.Code, map[string]string{"error": msg})
		return
	}

	code := errs.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request().Method, c.Path(), err)
	}
	respond(c, code, map[string]string{"error": err.Error(), "kind": string(errs.KindOf(err))})
}

func respond(c echo.Context, code int, body map[string]string) {
	var err error
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, body)
	}
	if err != nil {
		log.Printf("Failed to write error response: %v", err)
	}
}

func badRequest(message string) error {
	return errs.Validation("%s", message)
}
