package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	custhandler "onboard/internal/customer/handler"
	custmetrics "onboard/internal/customer/metrics"
	"onboard/internal/customer/registry"
	"onboard/internal/customer/resolver"
	custstore "onboard/internal/customer/store"
	"onboard/internal/events"
	"onboard/internal/gateway/bankverify"
	"onboard/internal/gateway/biometric"
	"onboard/internal/gateway/esign"
	"onboard/internal/gateway/httpclient"
	vaultgw "onboard/internal/gateway/vault"
	"onboard/internal/gateway/verification"
	"onboard/internal/gateway/watchlist"
	kychandler "onboard/internal/kyc/handler"
	kycmetrics "onboard/internal/kyc/metrics"
	"onboard/internal/kyc/profile"
	"onboard/internal/kyc/projector"
	"onboard/internal/kyc/vault"
	"onboard/internal/order"
	orderhandler "onboard/internal/order/handler"
	"onboard/internal/platform/config"
	"onboard/internal/platform/httpserver"
	"onboard/internal/platform/kafka"
	"onboard/internal/platform/logger"
	platformmetrics "onboard/internal/platform/metrics"
	platformredis "onboard/internal/platform/redis"
	httptransport "onboard/internal/transport/http"
	id "onboard/pkg/domain"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: PostgreSQL when configured, in-memory otherwise.
	var (
		customers custstore.Store = custstore.NewMemory()
		profiles  profile.Store   = profile.NewMemory()
		orders    order.Store     = order.NewMemory()
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		if err := db.PingContext(ctx); err != nil {
			log.Error("ping postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		customers = custstore.NewPostgres(db)
		profiles = profile.NewPostgres(db)
		orders = order.NewPostgres(db)
	}

	// Vault grant cache: Redis when configured, in-memory otherwise.
	var grantCache vault.Cache = vault.NewMemoryCache()
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		grantCache = vault.NewRedisCache(redisClient.Client)
	}

	// Event stream: Kafka when configured, in-process recorder otherwise.
	var publisher events.Publisher = events.NewRecorder()
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		publisher = events.NewKafkaPublisher(producer, log)
	}

	// The document worker reacts to final submissions in-process; the Kafka
	// stream feeds external consumers.
	inbox := make(chan events.Event, 64)
	publisher = events.NewTee(publisher, inbox)

	gateways := buildVerificationGateways(cfg.Gateways)
	watchlistGW := buildWatchlist(cfg.Gateways)
	bankGW := buildBankVerify(cfg.Gateways)
	biometricGW := buildBiometric(cfg.Gateways)
	esignGW := buildESign(cfg.Gateways)
	vaultGW := buildVault(cfg.Gateways)

	cm := custmetrics.New(nil)
	km := kycmetrics.New(nil)
	httpMetrics := platformmetrics.New(nil)

	reg := registry.New(customers, gateways, log, cm)
	resolve := resolver.New(customers, gateways, log, cm)
	project := projector.New(customers, reg, gateways, publisher, log, km)
	tokenSource := vault.NewTokenSource(vaultGW, grantCache, []byte(cfg.VaultSigningKey), log)

	profileSvc := profile.NewService(profile.ServiceConfig{
		Profiles:   profiles,
		Customers:  customers,
		Statuses:   reg,
		Watchlist:  watchlistGW,
		BankVerify: bankGW,
		Biometric:  biometricGW,
		VaultDocs:  vaultGW,
		VaultToken: tokenSource,
		Publisher:  publisher,
		Logger:     log,
		Metrics:    km,
	})
	orderSvc := order.NewService(orders, publisher, log)

	worker := events.NewDocumentWorker(esignGW, customers, inbox, log)
	go func() {
		if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("document worker stopped", "error", err)
		}
	}()

	orderHandler := orderhandler.New(orderSvc, log)
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:             log,
		Metrics:            httpMetrics,
		OperatorSigningKey: []byte(cfg.OperatorSigningKey),
		Public: []httptransport.Registrar{
			httptransport.RegistrarFunc(orderHandler.RegisterWebhook),
		},
		Protected: []httptransport.Registrar{
			custhandler.New(resolve, project, customers, log),
			kychandler.New(profileSvc, log),
			orderHandler,
		},
	})

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting onboard", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

func buildVerificationGateways(cfg config.GatewayConfig) map[id.SystemType]verification.Gateway {
	gateways := make(map[id.SystemType]verification.Gateway, 2)
	if cfg.SelfBaseURL != "" {
		gateways[id.SystemSelf] = verification.NewHTTP(id.SystemSelf, httpclient.Config{
			BaseURL: cfg.SelfBaseURL, APIKey: cfg.SelfAPIKey, Timeout: cfg.Timeout,
		})
	} else {
		gateways[id.SystemSelf] = verification.NewMock(id.SystemSelf)
	}
	if cfg.AssistedBaseURL != "" {
		gateways[id.SystemAssisted] = verification.NewHTTP(id.SystemAssisted, httpclient.Config{
			BaseURL: cfg.AssistedBaseURL, APIKey: cfg.AssistedAPIKey, Timeout: cfg.Timeout,
		})
	} else {
		gateways[id.SystemAssisted] = verification.NewMock(id.SystemAssisted)
	}
	return gateways
}

func buildWatchlist(cfg config.GatewayConfig) watchlist.Gateway {
	if cfg.WatchlistBaseURL != "" {
		return watchlist.NewHTTP(httpclient.Config{
			BaseURL: cfg.WatchlistBaseURL, APIKey: cfg.WatchlistAPIKey, Timeout: cfg.Timeout,
		})
	}
	return watchlist.NewMock()
}

func buildBankVerify(cfg config.GatewayConfig) bankverify.Gateway {
	if cfg.BankBaseURL != "" {
		return bankverify.NewHTTP(httpclient.Config{
			BaseURL: cfg.BankBaseURL, APIKey: cfg.BankAPIKey, Timeout: cfg.Timeout,
		})
	}
	return bankverify.NewMock()
}

func buildBiometric(cfg config.GatewayConfig) biometric.Gateway {
	if cfg.BiometricBaseURL != "" {
		return biometric.NewHTTP(httpclient.Config{
			BaseURL: cfg.BiometricBaseURL, APIKey: cfg.BiometricAPIKey, Timeout: cfg.Timeout,
		})
	}
	return biometric.NewMock()
}

func buildESign(cfg config.GatewayConfig) esign.Gateway {
	if cfg.ESignBaseURL != "" {
		return esign.NewHTTP(httpclient.Config{
			BaseURL: cfg.ESignBaseURL, APIKey: cfg.ESignAPIKey, Timeout: cfg.Timeout,
		})
	}
	return esign.NewMock()
}

func buildVault(cfg config.GatewayConfig) vaultgw.Gateway {
	if cfg.VaultBaseURL != "" {
		return vaultgw.NewHTTP(httpclient.Config{
			BaseURL: cfg.VaultBaseURL, APIKey: cfg.VaultAPIKey, Timeout: cfg.Timeout,
		})
	}
	return vaultgw.NewMock()
}
