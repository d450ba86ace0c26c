package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/robfig/cron"
	"go.uber.org/zap"

	"groceries-bot/internal/bot"
	"groceries-bot/internal/classifier"
	"groceries-bot/internal/engine"
	"groceries-bot/internal/registry"
	"groceries-bot/internal/session"
	"groceries-bot/internal/storage"
	"groceries-bot/pkg/config"
)

func main() {
	// Load .env if present; real environment variables win.
	_ = godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	store, err := newStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	reg := registry.New(store, logger)
	sessions := session.NewManager(cfg.Session.TTL)

	// Optional aisle suggestions
	var categorizer engine.Categorizer
	if cfg.Classifier.Enabled && cfg.OpenAI.APIKey != "" {
		logger.Info("Aisle suggestions enabled", zap.String("model", cfg.OpenAI.Model))
		categorizer = classifier.NewAisleSuggester(
			cfg.OpenAI.APIKey,
			cfg.OpenAI.Model,
			cfg.OpenAI.MaxTokens,
			cfg.OpenAI.Temperature,
			logger,
		)
	}

	eng := engine.New(reg, sessions, categorizer, engine.Config{
		MaxShoppingItems: cfg.Shopping.MaxItems,
		ButtonsPerRow:    cfg.Shopping.ButtonsPerRow,
		BackupDir:        cfg.Backup.Dir,
	}, logger)

	// Scheduled backups
	if cfg.Backup.Schedule != "" {
		c := cron.New()
		err := c.AddFunc(cfg.Backup.Schedule, func() {
			runBackup(reg, cfg.Backup.Dir, logger)
		})
		if err != nil {
			logger.Fatal("Invalid backup schedule",
				zap.Error(err),
				zap.String("schedule", cfg.Backup.Schedule))
		}
		c.Start()
		defer c.Stop()
		logger.Info("Scheduled backups enabled", zap.String("schedule", cfg.Backup.Schedule))
	}

	// Initialize bot
	b, err := bot.New(cfg.Telegram.Token, eng, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// Start the bot
	if err := b.Start(); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}

func newStore(cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		return storage.NewMemoryStore(), nil
	}

	if cfg.Database.Driver == "postgres" {
		logger.Info("Using PostgreSQL storage",
			zap.String("host", cfg.Database.Host),
			zap.String("dbname", cfg.Database.DBName))
		return storage.NewPostgresStore(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}, logger)
	}

	logger.Info("Using SQLite storage", zap.String("path", cfg.Database.Path))
	return storage.NewSQLiteStore(cfg.Database.Path, logger)
}

func runBackup(reg *registry.Registry, dir string, logger *zap.Logger) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Error("Failed to create backup dir", zap.Error(err), zap.String("dir", dir))
		return
	}
	name := fmt.Sprintf("groceries_backup_%s_%s.db",
		time.Now().Format("20060102_150405"), uuid.NewString()[:8])
	path := filepath.Join(dir, name)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := reg.Backup(ctx, path); err != nil {
		logger.Error("Scheduled backup failed", zap.Error(err), zap.String("path", path))
		return
	}
	logger.Info("Scheduled backup written", zap.String("path", path))
}
