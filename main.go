package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/smartfarmlink/smartfarm-backend-go/chat"
	"github.com/smartfarmlink/smartfarm-backend-go/config"
	"github.com/smartfarmlink/smartfarm-backend-go/database"
	"github.com/smartfarmlink/smartfarm-backend-go/events"
	"github.com/smartfarmlink/smartfarm-backend-go/handlers"
	"github.com/smartfarmlink/smartfarm-backend-go/orders"
	"github.com/smartfarmlink/smartfarm-backend-go/routes"
	"github.com/smartfarmlink/smartfarm-backend-go/store"
	"github.com/smartfarmlink/smartfarm-backend-go/utils"
)

func main() {
	cfg := config.Load()

	// Initialize Echo
	e := echo.New()
	e.HTTPErrorHandler = handlers.ErrorHandler

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	var (
		docs    database.DocumentStore
		lists   database.ListStore
		closers []func()
	)
	switch cfg.StoreDriver {
	case "memory":
		log.Println("⚠️ Using in-memory stores; data is lost on restart")
		docs = database.NewMemoryStore()
		lists = database.NewMemoryListStore()
	case "mongo":
		client, err := database.ConnectDB(cfg.Mongo)
		if err != nil {
			log.Fatal("Failed to connect to database:", err)
		}
		closers = append(closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				log.Printf("Failed to disconnect MongoDB: %v", err)
			}
		})
		docs = database.NewMongoStore(client.Database(cfg.Mongo.Database))

		rdb, err := database.ConnectRedis(cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis:", err)
		}
		closers = append(closers, func() { rdb.Close() })
		lists = database.NewRedisListStore(rdb)
	default:
		log.Fatalf("Unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	var publisher events.Publisher = events.LogPublisher{}
	if cfg.RabbitMQ.URL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.RabbitMQ)
		if err != nil {
			log.Printf("Order events will only be logged: %v", err)
		} else {
			publisher = amqpPublisher
			closers = append(closers, amqpPublisher.Close)
		}
	}

	orderIDs := utils.PrefixedIDs{Prefix: "order_", Next: utils.UUIDGenerator{}}
	engine := orders.NewEngine(store.NewOrderRepository(docs, cfg.Orders.MaxRetries), orderIDs, publisher, cfg.Orders.MaxRetries)
	conversations := store.NewConversationRepository(docs, cfg.Orders.MaxRetries)
	chatService := chat.NewService(conversations, lists, utils.UUIDGenerator{}, chat.Options{
		SentDelay:      cfg.Chat.SentDelay,
		DeliveredDelay: cfg.Chat.DeliveredDelay,
	})

	// Setup routes
	routes.SetupRoutes(e, handlers.New(engine, conversations, chatService), cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start the server
	go func() {
		log.Printf("🚀 Server starting on port %s...", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.Logger.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
	chatService.Close()
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}
