package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/marcx-ai/marcx-backend/internal/auth"
	"github.com/marcx-ai/marcx-backend/internal/config"
	"github.com/marcx-ai/marcx-backend/internal/database"
	"github.com/marcx-ai/marcx-backend/internal/handler"
	"github.com/marcx-ai/marcx-backend/internal/mailer"
	"github.com/marcx-ai/marcx-backend/internal/middleware"
	"github.com/marcx-ai/marcx-backend/internal/queue"
	"github.com/marcx-ai/marcx-backend/internal/repository"
	"github.com/marcx-ai/marcx-backend/internal/router"
	"github.com/marcx-ai/marcx-backend/internal/store"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		// Refresh tokens live in Redis; without it nobody can stay
		// logged in past an access-token lifetime.
		log.Fatal("redis: connection failed")
	}

	users := repository.NewUserRepo(db)
	creds := repository.NewCredentialRepo(db)
	otps := repository.NewOTPRepo(db)
	tokens := store.NewRefreshStore(store.NewRedisKV(rdb), cfg.RefreshTTL)

	var mail mailer.Mailer = mailer.NewQueueMailer(cfg.RabbitURL)
	if cfg.Env == "dev" || cfg.Env == "test" {
		mail = mailer.LogMailer{}
	} else {
		// Drain the OTP email queue in-process; a dedicated delivery
		// worker can take over by consuming the same durable queue.
		go func() {
			if err := queue.StartOTPEmailConsumer(); err != nil {
				log.Printf("otp-email-consumer: %v", err)
			}
		}()
	}

	svc := auth.NewService(auth.Config{
		JWTSecret:      cfg.JWTSecret,
		AccessTTL:      cfg.AccessTTL,
		RefreshTTL:     cfg.RefreshTTL,
		OTPTTL:         cfg.OTPTTL,
		OTPMaxAttempts: cfg.OTPMaxAttempts,
		BcryptCost:     cfg.BcryptCost,
	}, users, creds, otps, tokens, mail)

	e := echo.New()
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	authHandler := handler.NewAuthHandler(svc, cfg.RefreshTTL, cfg.CookieSecure())

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, svc.ValidateAccess, limiter)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
