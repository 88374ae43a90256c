// Command server runs the purchase workflow API and the outbox delivery
// worker in one process.
//
//	@title			Purchase Workflow API
//	@version		1.0
//	@description	Purchase requests with a NEW, IN_PROGRESS, BOUGHT/CANCELED lifecycle and a notification outbox.
//	@BasePath		/api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/go-purchase-backend/internal/config"
	"github.com/tbourn/go-purchase-backend/internal/delivery"
	httpapi "github.com/tbourn/go-purchase-backend/internal/http"
	"github.com/tbourn/go-purchase-backend/internal/observability"
	"github.com/tbourn/go-purchase-backend/internal/repo"
	"github.com/tbourn/go-purchase-backend/internal/services"
	"github.com/tbourn/go-purchase-backend/internal/sysutil"
	"github.com/tbourn/go-purchase-backend/internal/worker"
)

const (
	shutdownTimeout    = 15 * time.Second
	botConnectAttempts = 3
	botConnectDelay    = 2 * time.Second
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetupLogging(os.Stderr, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	version := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), "dev")

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(repo.Options{
		Driver:      cfg.DB.Driver,
		SQLitePath:  cfg.DB.Path,
		PostgresDSN: cfg.DB.URL,
		Tracing:     cfg.OTEL.Enabled,
		Silent:      cfg.LogLevel != "debug",
	})
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}
	log.Info().Str("driver", cfg.DB.Driver).Msg("database ready")

	outbox := services.NewOutboxService(db, nil)
	outbox.MaxAttempts = cfg.Outbox.MaxAttempts
	outbox.ClaimTTL = cfg.Outbox.ClaimTTL
	outbox.DeliveryTimeout = cfg.Outbox.DeliveryTimeout
	purchases := services.NewPurchaseService(db, outbox)

	deps := httpapi.Deps{DB: db, Purchases: purchases, Outbox: outbox}

	var dispatcher *worker.Dispatcher
	if cfg.Telegram.Enabled() {
		notifier, err := newNotifier(ctx, db, cfg.Telegram, cfg.Outbox.DeliveryTimeout)
		if err != nil {
			// The API still serves; entries wait in the outbox for a restart.
			log.Error().Err(err).Msg("telegram unavailable; notifications stay pending in the outbox")
		} else {
			outbox.Deliverer = notifier
			dispatcher = worker.New(outbox, cfg.Outbox.TickInterval, cfg.Outbox.BatchLimit)
			outbox.Kicker = dispatcher
			deps.Worker = dispatcher
		}
	} else {
		log.Warn().Msg("BOT_TOKEN not set; notifications stay pending in the outbox")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, deps, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if dispatcher != nil {
		g.Go(func() error { return dispatcher.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

// newNotifier connects the bot. Its HTTP client is bounded by the delivery
// timeout so abandoned Bot API calls do not pile up.
func newNotifier(ctx context.Context, db *gorm.DB, tg config.TelegramConfig, timeout time.Duration) (*delivery.TelegramNotifier, error) {
	client := delivery.NewHTTPClient(timeout)
	bot, err := delivery.ConnectBot(ctx, tg.BotToken, client, botConnectAttempts, botConnectDelay)
	if err != nil {
		return nil, err
	}
	log.Info().Str("bot", bot.Self.UserName).Int64("chat_id", tg.PurchasesChatID).Msg("telegram connected")
	return &delivery.TelegramNotifier{
		DB:              db,
		Bot:             bot,
		ChatID:          tg.PurchasesChatID,
		NotifyRequester: tg.NotifyRequester,
	}, nil
}
