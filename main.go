package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/audit"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/category"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/config"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/controllers"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/ledger"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/models"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/notify"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/plaid"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/router"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/syncer"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/telemetry"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/webhook"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// shutdownTimeout bounds the graceful shutdown.
const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// gin uses debug as the default mode, we use release for
	// security reasons
	gin.SetMode(cfg.GinMode)
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:  cfg.ServiceName,
		Version:      router.Version(),
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("could not set up tracing")
	}

	// Create data directory for the sqlite database
	if cfg.DBDriver == models.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DBDSN), os.ModePerm); err != nil {
			log.Fatal().Err(err).Msg("could not create data directory")
		}
	}

	// Connecting migrates all models
	db, err := models.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("could not connect to the database")
	}

	mapper := category.NewMapper(db, cfg.CategoryCacheTTL)
	store := ledger.New(db, mapper)

	// SIGHUP flushes the category cache after mappings were edited
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go mapper.FlushOn(ctx, hup)
	recorder := audit.NewRecorder(db)

	client, err := plaid.NewHTTPClient(plaid.Options{
		ClientID:    cfg.PlaidClientID,
		Secret:      cfg.PlaidSecret,
		Environment: cfg.PlaidEnv,
		Timeout:     cfg.PlaidTimeout,
		RateLimit:   cfg.PlaidRateLimit,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("could not create Plaid client")
	}

	engine := syncer.NewEngine(client, store, recorder, cfg.SyncPageSize)
	hub := notify.NewHub(0)

	// A nil *FCMPusher in the interface would not disable push
	var pusher notify.Pusher
	if cfg.FirebaseCredentials != "" {
		fcm, err := notify.NewFCMPusher(ctx, cfg.FirebaseCredentials, store.DeactivateDevices)
		if err != nil {
			log.Fatal().Err(err).Msg("could not set up push notifications")
		}
		pusher = fcm
	} else {
		log.Info().Msg("FIREBASE_CREDENTIALS_FILE is not set, push notifications are disabled")
	}
	notifier := notify.NewService(hub, pusher, store)

	dispatcher := webhook.NewDispatcher(store, engine, notifier, recorder, cfg.DispatchTimeout)

	var verifier *webhook.Verifier
	if cfg.VerifyWebhooks {
		verifier = webhook.NewVerifier(client)
	} else {
		log.Warn().Msg("webhook verification is disabled")
	}

	r, teardown, err := router.Config(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("could not configure router")
	}

	router.AttachRoutes(controllers.Controller{
		Store:      store,
		Plaid:      client,
		Engine:     engine,
		Dispatcher: dispatcher,
		Verifier:   verifier,
		Recorder:   recorder,
		Hub:        hub,
		Notifier:   notifier,
		Link: controllers.LinkConfig{
			ClientName:   "Budget Tracker",
			Language:     "en",
			Products:     cfg.PlaidProducts,
			CountryCodes: cfg.PlaidCountryCodes,
			WebhookURL:   cfg.PlaidWebhookURL,
		},
	}, r.Group("/"), cfg.EnablePprof)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("address", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Event streams only end when their session is closed
	hub.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	// Let webhooks that are already being processed finish
	dispatcher.Wait()
	teardown()

	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown failed")
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

// setupLogging configures the global logger.
//
// The log format can be explicitly set. If it is not set, it defaults to
// human readable for development and JSON for release.
func setupLogging(cfg config.Config) {
	output := io.Writer(os.Stdout)
	if (cfg.LogFormat == "" && gin.IsDebugging()) || cfg.LogFormat == "human" {
		output = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	level := zerolog.InfoLevel
	if gin.IsDebugging() {
		level = zerolog.DebugLevel
	}

	if cfg.LogLevel != "" {
		parsed, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			log.Warn().Str("level", cfg.LogLevel).Msg("unknown LOG_LEVEL, using default")
		} else {
			level = parsed
		}
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(output).With().Timestamp().Logger()
}
