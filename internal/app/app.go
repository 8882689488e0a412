// Package app initializes and runs the persistence core: it opens the
// database, applies migrations, builds the caches and services, and handles
// graceful shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/msavelyev-dev/teamcoach/internal/cache"
	"github.com/msavelyev-dev/teamcoach/internal/config"
	"github.com/msavelyev-dev/teamcoach/internal/logging"
	"github.com/msavelyev-dev/teamcoach/internal/models"
	"github.com/msavelyev-dev/teamcoach/internal/repositories/repomanager"
	"github.com/msavelyev-dev/teamcoach/internal/services"
)

type App struct {
	config        *config.Config
	logger        logging.Logger
	repomanager   repomanager.RepositoryManager
	accountCache  *cache.Cache[*models.Account]
	listCache     *cache.Cache[[]*models.Conversation]
	Accounts      *services.AccountService
	Conversations *services.ConversationService
	Identity      *services.IdentityService
	History       *services.HistoryService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	rm, err := repomanager.NewPostgresRepositoryManager(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	accountCache := cache.New[*models.Account](cfg.CacheTTL, cfg.CacheMaxEntries)
	listCache := cache.New[[]*models.Conversation](cfg.CacheTTL, cfg.CacheMaxEntries)

	var archiver services.Archiver
	if cfg.S3BaseEndpoint != "" {
		archiver = services.NewS3Archiver(cfg)
	}

	accounts := services.NewAccountService(rm, accountCache, logger)
	conversations := services.NewConversationService(rm, listCache, logger)
	identity := services.NewIdentityService(rm, accounts, conversations, logger)
	history := services.NewHistoryService(rm, listCache, archiver, logger)

	return &App{
		config:        cfg,
		logger:        logger,
		repomanager:   rm,
		accountCache:  accountCache,
		listCache:     listCache,
		Accounts:      accounts,
		Conversations: conversations,
		Identity:      identity,
		History:       history,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	app.accountCache.StartSweeper(ctx, app.config.CacheSweepInterval)
	app.listCache.StartSweeper(ctx, app.config.CacheSweepInterval)

	<-ctx.Done()

	if err := app.repomanager.Close(); err != nil {
		app.logger.Error(ctx, "closing repositories", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
