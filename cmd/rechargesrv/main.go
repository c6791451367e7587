package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"recharge-backend/internal/config"
	"recharge-backend/internal/domain"
	"recharge-backend/internal/env"
	"recharge-backend/internal/payments"
	"recharge-backend/internal/retry"
	"recharge-backend/internal/server"
	"recharge-backend/internal/store"
	"recharge-backend/internal/usecase"
)

func main() {
	env.Load(".env", ".env.local")
	defaults, err := config.EnvDefaults()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	envName := flag.String("env", defaults.Env, "")
	port := flag.Int("port", defaults.Port, "")
	dsn := flag.String("dsn", defaults.DatabaseDSN, "")
	jwtSecret := flag.String("jwt-secret", defaults.JWTSecret, "")
	logJSON := flag.Bool("log-json", defaults.LogJSON, "")
	flag.Parse()

	cfg := defaults
	cfg.Env = *envName
	cfg.Port = *port
	cfg.DatabaseDSN = *dsn
	cfg.JWTSecret = *jwtSecret
	cfg.LogJSON = *logJSON

	log := newLogger(cfg)

	st, err := newStore(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("store init failed")
	}

	payClient := &payments.Client{
		APIKey:        cfg.PayAPIKey,
		WebhookSecret: cfg.PayWebhookSecret,
		BaseURL:       cfg.PayBaseURL,
		HTTP:          &http.Client{Timeout: 10 * time.Second},
	}
	auth := &usecase.AuthService{Repo: st, JWTSecret: cfg.JWTSecret}
	checkout := &usecase.CheckoutService{
		Catalog:    st,
		Orders:     st,
		Pay:        payClient,
		Retry:      retry.Default(),
		Log:        log,
		SuccessURL: cfg.SuccessURL,
		CancelURL:  cfg.CancelURL,
	}
	webhook := &usecase.WebhookService{
		Orders: st,
		Ledger: st,
		Secret: cfg.PayWebhookSecret,
		Log:    log,
	}

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Port),
		Handler: server.New(cfg, log, auth, checkout, webhook).Handler(),
	}

	go func() {
		log.WithField("port", cfg.Port).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown failed")
	}
}

func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	if cfg.LogJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

// storeBackend is the union of every store-facing interface the services
// need; both implementations satisfy it.
type storeBackend interface {
	usecase.OrderStore
	usecase.Catalog
	usecase.UserRepo
	usecase.EventLedger
}

func newStore(cfg config.Config, log *logrus.Logger) (storeBackend, error) {
	if cfg.DatabaseDSN != "" {
		return store.NewPostgres(cfg.DatabaseDSN)
	}
	log.Warn("no database dsn configured, using in-memory store")
	mem := store.NewMemory()
	seedDevCatalog(mem)
	return mem, nil
}

// seedDevCatalog gives the memory store something to sell in dev mode.
func seedDevCatalog(mem *store.Memory) {
	now := time.Now().UTC()
	skus := []domain.SKU{
		{
			SkuID: "sku_starfall_60", MerchantID: "m_starfall", GameID: "starfall",
			Name: "60 Star Crystals", Description: "Small crystal pack",
			PriceCents: 99, Currency: "usd", Active: true, CreatedAt: now, UpdatedAt: now,
		},
		{
			SkuID: "sku_starfall_980", MerchantID: "m_starfall", GameID: "starfall",
			Name: "980 Star Crystals", Description: "Popular crystal pack",
			PriceCents: 1099, Currency: "usd", Active: true, CreatedAt: now, UpdatedAt: now,
		},
		{
			SkuID: "sku_ridge_season", MerchantID: "m_ridge", GameID: "ridgeline",
			Name: "Ridgeline Season Pass", Description: "Full season unlock",
			PriceCents: 2999, Currency: "usd", Active: true, CreatedAt: now, UpdatedAt: now,
		},
	}
	_ = mem.UpsertSKUs(context.Background(), skus)
}
