package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/signvault/internal/config"
	"github.com/iliyamo/signvault/internal/database"
	"github.com/iliyamo/signvault/internal/handler"
	"github.com/iliyamo/signvault/internal/middleware"
	"github.com/iliyamo/signvault/internal/model"
	"github.com/iliyamo/signvault/internal/queue"
	"github.com/iliyamo/signvault/internal/repository"
	"github.com/iliyamo/signvault/internal/router"
	"github.com/iliyamo/signvault/internal/service"
	"github.com/iliyamo/signvault/pkg/logger"
)

func main() {
	_ = godotenv.Load() // .env is optional; real environment wins

	cfg := config.Load()
	log, err := logger.NewLogger(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := openDB(cfg)
	if err != nil {
		log.Fatal("database connection failed", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, dialect); err != nil {
		log.Fatal("schema migration failed", zap.Error(err))
	}

	store := repository.NewStore(db, dialect)
	seedAdmin(ctx, cfg, store.Users, log)

	opts := service.Options{TxTimeout: cfg.TxTimeout}
	ledger := service.NewLedger(store, log, opts)
	docs := service.NewDocumentService(store, ledger, log, opts)
	signing := service.NewSigningService(store, ledger, log, opts)
	certs := service.NewCertificateService(store, ledger, log, opts)

	var notifier handler.Notifier
	if cfg.AMQPURL != "" {
		notifier = queue.NewPublisher(cfg.AMQPURL, log)
		consumer := queue.NewConsumer(cfg.AMQPURL, cfg.NotifyLogDir, docs, log)
		go consumer.Run(ctx)
	}
	if cfg.ExpirySweep > 0 {
		go sweepExpired(ctx, docs, cfg.ExpirySweep, log)
	}

	rdb := config.NewRedisClient(log)
	if rdb != nil {
		defer rdb.Close()
	}
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.BodyLimit(bodyLimit(cfg.MaxFileSizeMB)))

	router.RegisterRoutes(e, &handler.HealthHandler{DB: db, Redis: rdb, AMQPURL: cfg.AMQPURL})
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, store.Users, store.Tokens, log), cfg.JWTSecret, limit)
	router.RegisterOwner(e, handler.NewDocumentHandler(docs, certs, store.Users, cfg.PublicURL, cfg.MaxFileSizeMB, notifier, log), cfg.JWTSecret)
	router.RegisterSigner(e, handler.NewSigningHandler(signing, docs, store.Users, notifier, log), limit)

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
	log.Info("stopped")
}

// openDB connects with the configured driver.
func openDB(cfg config.Config) (*sql.DB, database.Dialect, error) {
	if cfg.DBDriver == config.DriverSQLite {
		db, err := database.OpenSQLite(cfg.SQLitePath)
		return db, database.DialectSQLite, err
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	return db, database.DialectMySQL, err
}

// seedAdmin creates the bootstrap admin when none exists and credentials are
// configured.
func seedAdmin(ctx context.Context, cfg config.Config, users *repository.UserRepo, log *zap.Logger) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		log.Warn("ADMIN_EMAIL/ADMIN_PASSWORD not set; skipping admin bootstrap")
		return
	}
	n, err := users.CountByRole(ctx, model.RoleAdmin)
	if err != nil {
		log.Fatal("count admins failed", zap.Error(err))
	}
	if n > 0 {
		return
	}
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if _, err := users.Create(ctx, email, cfg.AdminPassword, "Administrator", model.RoleAdmin, cfg.BcryptCost); err != nil {
		log.Fatal("create admin failed", zap.Error(err))
	}
	log.Info("admin bootstrapped", zap.String("email", email))
}

// sweepExpired expires overdue pending documents until ctx is done.
func sweepExpired(ctx context.Context, docs *service.DocumentService, every time.Duration, log *zap.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := docs.ExpireOverdue(ctx)
			if err != nil {
				log.Error("expiry sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("expired overdue documents", zap.Int("count", n))
			}
		}
	}
}

// bodyLimit leaves headroom above the file cap for the other multipart parts.
func bodyLimit(maxFileMB int) string {
	return strconv.Itoa(maxFileMB+1) + "M"
}
