package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	grpclib "google.golang.org/grpc"

	"github.com/simaogato/roomsplit-payments/internal/adapter/cache"
	grpcadapter "github.com/simaogato/roomsplit-payments/internal/adapter/grpc"
	httpadapter "github.com/simaogato/roomsplit-payments/internal/adapter/http"
	"github.com/simaogato/roomsplit-payments/internal/adapter/kafka"
	"github.com/simaogato/roomsplit-payments/internal/adapter/repository/postgres"
	"github.com/simaogato/roomsplit-payments/internal/config"
	"github.com/simaogato/roomsplit-payments/internal/domain"
	"github.com/simaogato/roomsplit-payments/internal/usecase/catalog"
	"github.com/simaogato/roomsplit-payments/internal/usecase/ledger"
	"github.com/simaogato/roomsplit-payments/internal/usecase/seeder"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 1. Setup Database
	// Add 2-second delay to ensure Postgres is up (Simple retry)
	time.Sleep(2 * time.Second)

	db, err := postgres.NewDB(cfg.DatabaseURL())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 2. Initialize Repositories (Postgres)
	transactionRepo := postgres.NewTransactionRepository(db)
	bankRepo := postgres.NewBankRepository(db)

	// 3. Optional infrastructure: Redis cache and Kafka events
	var bankCache domain.BankCache
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()
		bankCache = cache.NewBankCache(rdb, cfg.CatalogCacheTTL)
		log.Printf("Bank catalog cache enabled (%s, ttl %s)", cfg.RedisAddr, cfg.CatalogCacheTTL)
	}

	var publisher domain.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, 10, 5*time.Second)
		if err != nil {
			log.Fatalf("Failed to start Kafka producer: %v", err)
		}
		defer producer.Close()
		publisher = producer
	}

	// 4. Initialize Services (Use Cases)
	ledgerService := ledger.NewLedgerService(transactionRepo, bankRepo, publisher)
	catalogService := catalog.NewCatalogService(bankRepo, bankCache)

	// Seed demo bank destinations
	if cfg.SeedDemoRoom != "" {
		bankSeeder := seeder.NewBankSeeder(bankRepo, seeder.DefaultDemoBanks)
		created, err := bankSeeder.Seed(ctx, uuid.MustParse(cfg.SeedDemoRoom))
		if err != nil {
			log.Fatalf("Failed to seed demo banks: %v", err)
		}
		log.Printf("Seeded %d demo bank destinations for room %s", created, cfg.SeedDemoRoom)
	}

	// Expire abandoned pending transactions
	reaper := ledger.NewReaper(ledgerService, cfg.ReapInterval, cfg.PendingTTL)
	go reaper.Run(ctx)

	// 5. Start gRPC Server with AuthInterceptor
	grpcServer := grpclib.NewServer(
		grpclib.UnaryInterceptor(grpcadapter.AuthInterceptor(cfg.APIToken)),
	)
	grpcadapter.RegisterPaymentGatewayServer(grpcServer, grpcadapter.NewServer(ledgerService, catalogService))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", cfg.GRPCAddr, err)
	}

	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("Failed to serve gRPC server: %v", err)
		}
	}()

	// 6. Start HTTP Server
	app := httpadapter.NewApp(httpadapter.NewHandler(ledgerService, catalogService), cfg.APIToken)
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Fatalf("Failed to serve HTTP server: %v", err)
		}
	}()

	// Graceful shutdown
	waitForShutdown(grpcServer, func() {
		stop()
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Printf("HTTP server shutdown failed: %v", err)
		}
	})
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the servers
func waitForShutdown(grpcServer *grpclib.Server, shutdown func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal: %v. Shutting down gracefully...", sig)

	shutdown()
	grpcServer.GracefulStop()
	log.Println("gRPC server stopped")
}
