package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/auriclabs/goldledger/internal/config"
	"github.com/auriclabs/goldledger/internal/database"
	"github.com/auriclabs/goldledger/internal/handler"
	"github.com/auriclabs/goldledger/internal/ledger"
	"github.com/auriclabs/goldledger/internal/queue"
	"github.com/auriclabs/goldledger/internal/repository"
	"github.com/auriclabs/goldledger/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureSchema(ctx, db); err != nil {
		cancel()
		log.Fatalf("database: %v", err)
	}
	cancel()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; trace cache and rate limiting disabled")
	}

	// Review notifications are best-effort: the consumer reconnects on
	// its own and the server runs fine without a broker.
	go func() {
		if err := queue.StartWastageConsumer(); err != nil {
			log.Printf("wastage consumer stopped: %v", err)
		}
	}()

	svc := ledger.NewService(db, ledger.DefaultPolicy())
	participants := repository.NewParticipantRepo(db)
	tokens := repository.NewTokenRepo(db)
	batches := repository.NewBatchRepo(db)
	wastage := repository.NewWastageRepo(db)
	products := repository.NewProductRepo(db)
	audit := repository.NewAuditRepo(db)

	authH := handler.NewAuthHandler(cfg, participants)
	tokenH := handler.NewTokenHandler(svc, tokens, participants)
	batchH := handler.NewBatchHandler(svc, batches)
	wastageH := handler.NewWastageHandler(svc, wastage, tokens, participants)
	productH := handler.NewProductHandler(svc, products)
	adminH := handler.NewAdminHandler(cfg, svc, participants, audit)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterLedger(e, svc, tokenH, batchH, wastageH, productH, cfg.JWTSecret)
	router.RegisterAdmin(e, svc, adminH, cfg.JWTSecret)
	router.RegisterPublic(e, productH, config.LoadCacheConfig(), config.LoadRateLimitConfig(), rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
