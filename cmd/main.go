package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/config"
	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/events"
	eventskafka "github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/events/kafka"
	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/gateway"
	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/handlers"
	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/services"
	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/storage"
	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/storage/memory"
	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/storage/mongostore"
	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/storage/postgresstore"
	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/worker"
)

func newStore(ctx context.Context, cfg config.Config) (storage.TransactionStore, error) {
	switch cfg.StoreDriver {
	case "mongo":
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		store := mongostore.NewStore(client.Database(cfg.MongoDatabase))
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		return postgresstore.Open(ctx, cfg.PostgresDSN)
	default:
		log.Printf("Using in-memory transaction store (driver %q)", cfg.StoreDriver)
		return memory.NewStore(), nil
	}
}

func newGateway(cfg config.Config) gateway.Gateway {
	switch cfg.GatewayProvider {
	case "clickpesa":
		return gateway.NewClickPesaClient(cfg.ClickPesa)
	default:
		return gateway.NewSonicPesaClient(cfg.SonicPesa)
	}
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Error loading .env: %s", err)
	}

	cfg := config.Load()
	ctx := context.Background()

	store, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize transaction store: %v", err)
	}

	gw := newGateway(cfg)
	log.Printf("Using %s payment gateway", gw.Name())

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = eventskafka.NewPublisher(cfg.KafkaBrokers, services.EventTopic)
		log.Printf("Publishing payment events to Kafka: brokers=%v", cfg.KafkaBrokers)
	}

	paymentService := services.NewPaymentService(store, gw, publisher)
	paymentHandler := handlers.NewPaymentHandler(paymentService, cfg.CallbackToken)

	router := mux.NewRouter()
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "HEAD")

	authed := handlers.JWTMiddleware(cfg.JWTSecret)
	router.Handle("/api/payment/initiate", authed(http.HandlerFunc(paymentHandler.Initiate))).Methods("POST")
	router.HandleFunc("/api/payment/callback", paymentHandler.Callback).Methods("POST")
	router.Handle("/api/payment/status", authed(http.HandlerFunc(paymentHandler.CheckStatus))).Methods("GET")
	router.Handle("/api/payment/cancel", authed(http.HandlerFunc(paymentHandler.Cancel))).Methods("POST")
	router.Handle("/api/payments", authed(http.HandlerFunc(paymentHandler.List))).Methods("GET")

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	handler := cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "x-callback-token"},
		MaxAge:         300,
	})(router)

	if cfg.SweepEnabled {
		sweeper := worker.NewSweeper(paymentService, store, cfg.SweepInterval)
		go sweeper.Run(ctx)
	}

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	log.Printf("Server running on port %s", cfg.Port)
	log.Fatal(server.ListenAndServe())
}
