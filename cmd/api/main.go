package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/example/food-cart/internal/api"
	"github.com/example/food-cart/internal/config"
	"github.com/example/food-cart/internal/domain/cart"
	"github.com/example/food-cart/internal/infrastructure/cartservice"
	"github.com/example/food-cart/internal/infrastructure/kafka"
	"github.com/example/food-cart/internal/infrastructure/mealservice"
	"github.com/example/food-cart/internal/infrastructure/rabbitmq"
	"github.com/example/food-cart/internal/infrastructure/store"
	"github.com/example/food-cart/internal/session"
	"github.com/gin-gonic/gin"
)

const (
	sessionIdleTimeout   = 30 * time.Minute
	sessionSweepInterval = 5 * time.Minute
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[API] Invalid configuration: %v", err)
	}

	log.Println("[API] ========================================")
	log.Println("[API] Food Cart - Session API")
	log.Println("[API] ========================================")
	log.Printf("[API] Cart service: %s", cfg.CartServiceURL)
	log.Printf("[API] Meal service: %s", cfg.MealServiceURL)
	log.Printf("[API] Session store: %s", cfg.StoreBackend)
	log.Printf("[API] Require login: %v", cfg.RequireLogin)
	log.Printf("[API] Merge strategy: %s", cfg.MergeStrategy)

	baseStore, closeStore := openStore(ctx, cfg)
	defer closeStore()

	// Remote cart service
	client := cartservice.NewClient(cfg.CartServiceURL, cfg.RequestTimeout)
	anonClient := cartservice.NewAnonymousClient(client)
	userClient := cartservice.NewUserClient(client)
	catalog := mealservice.NewCatalog(cfg.MealServiceURL, cfg.RequestTimeout, mealservice.DefaultTTL)

	opts := []session.Option{session.WithCatalog(catalog)}
	var publishers cart.Publishers
	if cfg.KafkaEnabled() {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		publishers = append(publishers, producer)
		log.Printf("[API] Kafka: %v (topic %s)", cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	if cfg.RabbitMQEnabled() {
		rabbit, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			log.Fatalf("[API] Failed to set up RabbitMQ: %v", err)
		}
		defer rabbit.Close()
		publishers = append(publishers, rabbit)
		log.Printf("[API] RabbitMQ exchange: %s", cfg.RabbitMQExchange)
	}
	if len(publishers) > 0 {
		opts = append(opts, session.WithPublisher(publishers))
	} else {
		log.Println("[API] No broker configured, cart events are not published")
	}

	manager := session.NewManager(baseStore, anonClient, userClient, session.Config{
		RequireLogin:  cfg.RequireLogin,
		MergeStrategy: cfg.MergeStrategy,
		ExtendDays:    cfg.AnonymousExtendDays,
	}, opts...)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		manager.RunEviction(ctx, sessionSweepInterval, sessionIdleTimeout)
	}()

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.RouterConfig{
		Sessions:       manager,
		WebDir:         cfg.WebDir,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.Println("[API] ========================================")
		log.Printf("[API] Server started on %s", cfg.HTTPAddr)
		log.Println("[API] ========================================")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[API] Shutdown error: %v", err)
	}

	wg.Wait()
}

// openStore picks the session store backend. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func()) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		db, err := store.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("[API] Failed to connect to PostgreSQL: %v", err)
		}
		pg := store.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatalf("[API] Failed to create session table: %v", err)
		}
		log.Println("[API] Connected to PostgreSQL")
		return pg, func() { closeDB(db) }

	case config.StoreDynamoDB:
		client, err := store.NewDynamoClient(ctx)
		if err != nil {
			log.Fatalf("[API] Failed to create DynamoDB client: %v", err)
		}
		log.Printf("[API] Using DynamoDB table %s", cfg.DynamoDBTable)
		return store.NewDynamoStore(client, cfg.DynamoDBTable), func() {}

	default:
		log.Println("[API] Using in-memory session store, carts are lost on restart")
		return store.NewMemoryStore(), func() {}
	}
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Printf("[API] Failed to close database: %v", err)
	}
}
