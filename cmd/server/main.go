package main // Entry point package

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/slot-booking/internal/config"
	"github.com/iliyamo/slot-booking/internal/database"
	"github.com/iliyamo/slot-booking/internal/handler"
	"github.com/iliyamo/slot-booking/internal/lock"
	"github.com/iliyamo/slot-booking/internal/logger"
	"github.com/iliyamo/slot-booking/internal/metrics"
	"github.com/iliyamo/slot-booking/internal/middleware"
	"github.com/iliyamo/slot-booking/internal/notify"
	"github.com/iliyamo/slot-booking/internal/queue"
	"github.com/iliyamo/slot-booking/internal/repository"
	"github.com/iliyamo/slot-booking/internal/router"
	"github.com/iliyamo/slot-booking/internal/scheduler"
	"github.com/iliyamo/slot-booking/internal/service"
)

// store is what both the engine and the mail dispatcher persist to.
type store interface {
	service.Store
	notify.MailQueue
}

func main() {
	_ = godotenv.Load() // a missing .env is fine; real env vars win

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("exiting", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// ---- Storage ----
	var st store
	if cfg.DatabaseEnabled() {
		db, err := database.Open(ctx, database.Options{
			User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		})
		if err != nil {
			return fmt.Errorf("mysql: %w", err)
		}
		defer db.Close()
		if err := database.EnsureSchema(ctx, db); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
		st = repository.NewMySQLStore(db)
		log.Info("using mysql store", "host", cfg.DBHost, "db", cfg.DBName)
	} else {
		st = repository.NewMemoryStore()
		log.Warn("DB_HOST not set, using in-memory store; data is lost on restart")
	}

	// ---- Redis: lock, quota, cache, rate limit ----
	var (
		rdb    *redis.Client
		locker lock.Locker = lock.NewLocal()
		quota  notify.Quota = notify.NewMemoryQuota(cfg.Policy.DailyQuota, cfg.Policy.Zone, nil)
	)
	if cfg.RedisEnabled {
		var err error
		rdb, err = config.NewRedisClient(ctx)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		locker = lock.NewRedis(rdb, cfg.LockKey, cfg.LockTTL, log)
		quota = notify.NewRedisQuota(rdb, "mail-quota", cfg.Policy.DailyQuota, cfg.Policy.Zone)
		log.Info("redis enabled", "addr", rdb.Options().Addr)
	}

	// ---- Mail ----
	var sender notify.Sender = notify.LogSender{Log: log.With("component", "mail")}
	if cfg.AMQPURL != "" {
		pub := queue.NewPublisher(cfg.AMQPURL, cfg.MailQueue, cfg.Policy.FromName, log)
		defer pub.Close()
		sender = pub
	}
	disp := notify.NewDispatcher(st, sender, quota, cfg.Policy.ReserveForReminders, log.With("component", "dispatcher"), m)
	mailer, err := notify.NewMailer(disp, notify.MailerConfig{
		FromName:    cfg.Policy.FromName,
		Location:    cfg.Policy.Location,
		Timezone:    cfg.Policy.Timezone,
		AdminEmails: cfg.Policy.AdminEmails,
	})
	if err != nil {
		return fmt.Errorf("mail templates: %w", err)
	}

	// ---- Engine and jobs ----
	sched := scheduler.New(log, cfg.Policy.Zone)
	var batch *scheduler.Delayed
	engine := service.NewEngine(service.Deps{
		Store:   st,
		Mailer:  mailer,
		Locker:  locker,
		Policy:  cfg.Policy,
		SlotGen: cfg.SlotGen,
		Logger:  log,
		Metrics: m,
		Batches: service.ScheduleFunc(func() { batch.Trigger() }),
	})
	batch = sched.After("batch", cfg.Policy.BatchDelay, engine.BatchJob)
	if err := sched.Every("mail-flush", cfg.Schedule.FlushEvery, engine.FlushJob); err != nil {
		return err
	}
	for _, j := range []struct {
		name, at string
		job      scheduler.Job
	}{
		{"reminders", cfg.Schedule.ReminderAt, engine.ReminderJob},
		{"admin-digest", cfg.Schedule.DigestAt, engine.DigestJob},
		{"history-cleanup", cfg.Schedule.CleanupAt, engine.CleanupJob},
	} {
		if err := sched.DailyAt(j.name, j.at, j.job); err != nil {
			return err
		}
	}

	if _, err := engine.SeedSlots(ctx); err != nil {
		return fmt.Errorf("seed slots: %w", err)
	}

	// ---- HTTP ----
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.LogAttrs(c.Request().Context(), slog.LevelDebug, "http",
				slog.String("method", v.Method), slog.String("path", v.URIPath),
				slog.Int("status", v.Status), slog.Duration("latency", v.Latency))
			return nil
		},
	}))

	limit := middleware.NewTokenBucket(cfg.RateLimit, rdb, log)
	router.RegisterRoutes(e, reg)
	router.RegisterPublic(e, handler.NewPublicHandler(engine, log), middleware.NewRedisCache(cfg.Cache, rdb), limit)
	router.RegisterAdmin(e, handler.NewAdminHandler(engine, handler.AdminAuth{
		Email:        cfg.AdminLoginEmail,
		PasswordHash: cfg.AdminPasswordHash,
		JWTSecret:    cfg.JWTSecret,
		TTLMin:       cfg.AccessTTLMin,
	}, log), cfg.JWTSecret, limit)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	g.Go(func() error { return sched.Run(gctx) })
	if cfg.AMQPURL != "" {
		g.Go(func() error {
			return queue.StartMailConsumer(gctx, queue.ConsumerConfig{
				URL: cfg.AMQPURL, Queue: cfg.MailQueue, LogPath: cfg.MailLog,
			}, log.With("component", "mail-consumer"))
		})
	}
	return g.Wait()
}
