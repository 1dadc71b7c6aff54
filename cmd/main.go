package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"civicvoice/backend/internal/aiclient"
	"civicvoice/backend/internal/api/handler"
	"civicvoice/backend/internal/complaint"
	"civicvoice/backend/internal/config"
	"civicvoice/backend/internal/enhance"
	"civicvoice/backend/internal/localization"
	"civicvoice/backend/internal/models"
	"civicvoice/backend/internal/notification"
	"civicvoice/backend/internal/storage"
	"civicvoice/backend/internal/suggestion"
	"civicvoice/backend/internal/telegram"
	"civicvoice/backend/internal/transcription"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg *config.Config, log zerolog.Logger) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect PostgreSQL")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect Redis")
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Complaint{},
		&models.Vote{},
		&models.Comment{},
		&models.Notification{},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	log.Info().Msg("database and redis connections established, migrations complete")
	return db, rdb
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, rdb := setupDependencies(cfg, log)
	store := storage.NewStorageService(db, rdb)

	var tgNotifier notification.TelegramSender
	if cfg.TelegramBotToken != "" {
		notifier, err := telegram.NewNotifier(cfg.TelegramBotToken)
		if err != nil {
			log.Warn().Err(err).Msg("telegram notifier unavailable, notifications stay in-app")
		} else {
			tgNotifier = notifier
			log.Info().Msg("telegram notification mirror enabled")
		}
	}

	dispatcher := notification.NewDispatcher(store, localization.NewLocalizer(), tgNotifier, log)
	go dispatcher.Run()
	defer dispatcher.Stop()

	var (
		transcriber *transcription.Service
		enhancer    *enhance.Service
		suggester   complaint.SuggestionGenerator
	)
	if cfg.AIConfigured() {
		ai := aiclient.New(aiclient.Config{
			BaseURL: cfg.AIBaseURL,
			APIKey:  cfg.AIAPIKey,
			Model:   cfg.AIModel,
		}, log)
		transcriber = transcription.NewService(ai, log)
		enhancer = enhance.NewService(ai, log)
		suggester = suggestion.NewService(ai, store, log)
		log.Info().Str("model", cfg.AIModel).Msg("ai provider configured")
	} else {
		log.Warn().Msg("ai provider not configured, ai routes will answer 503")
	}

	complaints := complaint.NewService(store, dispatcher, suggester, log)

	r := gin.Default()
	h := handler.NewHandler(cfg, store, complaints, transcriber, enhancer, log)
	h.RegisterRoutes(r)

	server := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
		// AI routes can legitimately run for minutes; the write timeout
		// has to cover them. Per-request contexts bound everything else.
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   5 * time.Minute,
		MaxHeaderBytes: 1 << 20,
	}

	log.Info().Str("addr", server.Addr).Msg("starting civicvoice backend")
	if err := server.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("http server stopped")
	}
}
