package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/booking"
	"github.com/iliyamo/hotel-booking/internal/config"
	"github.com/iliyamo/hotel-booking/internal/database"
	"github.com/iliyamo/hotel-booking/internal/handler"
	"github.com/iliyamo/hotel-booking/internal/lock"
	"github.com/iliyamo/hotel-booking/internal/logger"
	"github.com/iliyamo/hotel-booking/internal/middleware"
	"github.com/iliyamo/hotel-booking/internal/queue"
	"github.com/iliyamo/hotel-booking/internal/repository"
	"github.com/iliyamo/hotel-booking/internal/router"
	"github.com/iliyamo/hotel-booking/internal/service"
	"github.com/iliyamo/hotel-booking/internal/storage/memory"
	"github.com/iliyamo/hotel-booking/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

// stores groups the persistence backends chosen by STORAGE_DRIVER.
type stores struct {
	tx       booking.Store
	hotels   handler.HotelReader
	bookings interface {
		handler.BookingReader
		worker.DueLister
	}
	users  handler.UserStore
	tokens interface {
		handler.TokenStore
		worker.TokenPurger
	}
	ping   handler.Pinger
	close  func() error
}

func openStores(ctx context.Context, cfg config.Config, log *zap.Logger) (*stores, error) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		db := memory.New(nil)
		return &stores{
			tx: db, hotels: db.Hotels(), bookings: db.Bookings(), users: db.Users(), tokens: db.Tokens(),
			close: func() error { return nil },
		}, nil
	}

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		return nil, err
	}
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &stores{
		tx:       repository.NewStore(db),
		hotels:   repository.NewHotelRepo(db),
		bookings: repository.NewBookingRepo(db),
		users:    repository.NewUserRepo(db),
		tokens:   repository.NewTokenRepo(db),
		ping:     db,
		close:    db.Close,
	}, nil
}

func run() error {
	_ = godotenv.Load() // .env is optional

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = st.close() }()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable, rate limiting and response cache disabled")
	} else {
		defer func() { _ = rdb.Close() }()
	}

	locker, err := newLocker(cfg, rdb)
	if err != nil {
		return err
	}

	cacheCfg := config.LoadCacheConfig()
	notifiers := booking.Notifiers{}
	purger := middleware.NewCachePurger(rdb, cacheCfg.Prefix, log)
	if purger != nil {
		notifiers = append(notifiers, purger)
	}
	if cfg.RabbitEnabled {
		pub := service.NewPublisher(cfg.RabbitURL, cfg.EventsQueue, log)
		defer func() { _ = pub.Close() }()
		notifiers = append(notifiers, pub)

		consumer := queue.NewConsumer(cfg.RabbitURL, cfg.EventsQueue, cfg.AuditLogPath, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("booking consumer stopped", zap.Error(err))
			}
		}()
	}

	coord := booking.NewCoordinator(booking.CoordinatorConfig{
		Store:    st.tx,
		Locker:   locker,
		Notifier: notifiers,
		Logger:   log.Named("coordinator"),
		LockWait: cfg.LockWait,
	})

	auth := handler.NewAuthHandler(cfg, st.users, st.tokens, log)
	if err := auth.EnsureAdmin(ctx); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	var catalogPurger handler.CatalogPurger
	if purger != nil {
		catalogPurger = purger
	}

	e := router.New(router.Deps{
		Auth:      auth,
		Hotels:    handler.NewHotelHandler(st.hotels, coord, catalogPurger, log, cfg.RequestTimeout),
		Bookings:  handler.NewBookingHandler(st.bookings, st.hotels, coord, log, cfg.RequestTimeout),
		DB:        st.ping,
		JWTSecret: cfg.JWTSecret,
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     cacheCfg,
		Log:       log,
	})

	if cfg.SweepInterval > 0 {
		sweeper := &worker.Sweeper{
			Due:       st.bookings,
			Completer: coord,
			Tokens:    st.tokens,
			Interval:  cfg.SweepInterval,
			Batch:     cfg.SweepBatch,
			Log:       log.Named("sweeper"),
		}
		go sweeper.Run(ctx)
	}

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env),
			zap.String("storage", cfg.StorageDriver), zap.String("lock", cfg.LockBackend))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newLocker(cfg config.Config, rdb *redis.Client) (booking.Locker, error) {
	if cfg.LockBackend != config.LockRedis {
		return lock.NewLocal(), nil
	}
	if rdb == nil {
		return nil, errors.New("LOCK_BACKEND=redis but redis is unreachable")
	}
	return lock.NewRedis(rdb, lock.RedisOptions{TTL: cfg.LockTTL}), nil
}
