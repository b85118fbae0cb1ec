package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"genesis-iam/backend/internal/audit"
	"genesis-iam/backend/internal/config"
	"genesis-iam/backend/internal/db"
	"genesis-iam/backend/internal/httpapi"
	"genesis-iam/backend/internal/identity/oauth"
	identityservice "genesis-iam/backend/internal/identity/service"
	"genesis-iam/backend/internal/obs"
	"genesis-iam/backend/internal/policy"
	profileservice "genesis-iam/backend/internal/profile/service"
	"genesis-iam/backend/internal/security"
	sessionservice "genesis-iam/backend/internal/session/service"
	storepg "genesis-iam/backend/internal/store/pg"
	userservice "genesis-iam/backend/internal/user/service"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// The codec refuses an empty key: no JWT_SECRET, no server.
	codec, err := security.NewTokenCodec([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	obs.Init()
	logger := obs.Logger()

	stream, err := audit.NewKafkaStream(cfg.KafkaBrokers(), cfg.AuditKafkaTopic)
	if err != nil {
		log.Fatalf("audit stream: %v", err)
	}
	if stream != nil {
		defer stream.Close()
	}
	recorder := audit.NewRecorder(stream)

	st := storepg.New(conn)
	hasher := security.NewHasher(cfg.BcryptCost)

	engine, err := policy.NewEngine()
	if err != nil {
		log.Fatalf("policy: %v", err)
	}

	authSvc := identityservice.NewAuthService(st, hasher, recorder)
	sessionSvc := sessionservice.NewManager(st, codec, recorder, cfg.AccessTTL(), cfg.RefreshTTL())
	adminSvc := userservice.NewAdminService(st, recorder)
	profileSvc := profileservice.NewService(st, recorder)

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	created, err := userservice.EnsureRootAdmin(bootCtx, st, hasher, recorder,
		cfg.RootAdminUsername, cfg.RootAdminEmail, cfg.RootAdminPassword)
	bootCancel()
	if err != nil {
		log.Fatalf("root admin bootstrap: %v", err)
	}
	if created {
		logger.Info("root admin bootstrapped", "email", cfg.RootAdminEmail)
	}

	api := httpapi.New(httpapi.Options{
		Auth:      authSvc,
		Sessions:  sessionSvc,
		Users:     adminSvc,
		Profiles:  profileSvc,
		Verifier:  oauth.NewHTTPVerifier(),
		Policy:    engine,
		Ready:     httpapi.ReadyProbe{DB: conn, Policy: engine},
		Logger:    logger,
		RateRPS:   cfg.RateLimitRPS,
		RateBurst: cfg.RateLimitBurst,
		Version:   version,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	logger.Info("http server stopped")
}
