package main

import (
	"context"
	"log"

	"github.com/labstack/echo/v4"

	"github.com/Sunny-Hasho/Eventura-v1/auth"
	"github.com/Sunny-Hasho/Eventura-v1/dashboard"
	"github.com/Sunny-Hasho/Eventura-v1/db"
	"github.com/Sunny-Hasho/Eventura-v1/httpapi"
	"github.com/Sunny-Hasho/Eventura-v1/notify"
	"github.com/Sunny-Hasho/Eventura-v1/payment"
	"github.com/Sunny-Hasho/Eventura-v1/pitch"
	"github.com/Sunny-Hasho/Eventura-v1/request"
)

func main() {
	ctx := context.Background()

	cfg, err := db.LoadConfig()
	if err != nil {
		log.Fatalf("bootstrap config: %v", err)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	notifyRepo := notify.NewRepository(pool)

	var notifier interface {
		Notify(ctx context.Context, userID, message string) error
	}
	if cfg.RedisAddr != "" {
		queue := notify.NewQueue(cfg.RedisAddr)
		defer queue.Close()

		processor := notify.NewProcessor(cfg.RedisAddr, notifyRepo)
		processor.Start()
		defer processor.Shutdown()

		notifier = queue
	} else {
		log.Printf("REDIS_ADDR not set, delivering notifications synchronously")
		notifier = notify.NewDirect(notifyRepo)
	}

	hub := dashboard.NewHub()

	authService := auth.NewService(auth.NewRepository(pool), cfg.JWTSecret)
	requestRepo := request.NewRepository(pool)
	requestService := request.NewService(requestRepo)

	paymentRepo := payment.NewRepository(pool)
	paymentService := payment.NewService(pool, paymentRepo, requestRepo, notifier, hub, cfg.PlatformFeePct)
	pitchService := pitch.NewService(pool, pitch.NewRepository(pool), requestRepo, paymentService, paymentRepo, notifier, hub)

	server := &httpapi.Server{
		Auth:          authService,
		Requests:      requestService,
		Pitches:       pitchService,
		Payments:      paymentService,
		Notifications: notify.NewService(notifyRepo),
		Dashboard:     hub,
	}

	e := echo.New()
	server.Register(e)

	log.Fatal(e.Start(":" + cfg.Port))
}
