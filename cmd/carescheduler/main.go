package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"care-scheduler/internal/bot"
	"care-scheduler/internal/config"
	httpx "care-scheduler/internal/http"
	"care-scheduler/internal/logger"
	"care-scheduler/internal/repository"
	"care-scheduler/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := logger.New(cfg.IsProduction())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db, err := repository.NewDB(cfg.DatabaseURL, zlog)
	if err != nil {
		zlog.Fatal("db", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	medRepo := repository.NewMedicationRepository(db)
	eventRepo := repository.NewEventRepository(db)
	completionRepo := repository.NewCompletionRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	var fired service.FiredKeys = service.NewMemoryFiredKeys()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			zlog.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		fired = service.NewRedisFiredKeys(rdb, "care:reminder:", cfg.FiredKeyTTL())
		zlog.Info("reminder dedup shared through redis", zap.String("addr", cfg.RedisAddr))
	}

	tracker := service.NewCompletionService(completionRepo, zlog.Named("completion"))
	taskSvc := service.NewTaskService(medRepo, eventRepo, completionRepo, userRepo, tracker, zlog.Named("tasks"))
	notifySvc := service.NewNotificationService(notificationRepo, settingsRepo, zlog.Named("notify"))
	reminderSvc := service.NewReminderService(settingsRepo, medRepo, eventRepo, userRepo, notifySvc, fired, zlog.Named("reminder"))
	if interval := cfg.ScanInterval(); interval > service.DefaultReminderTolerance {
		// a tick must not be able to jump over a lead time window
		reminderSvc.WithTolerance(interval)
	}
	sessions := service.NewSessionService(reminderSvc, cfg.ScanInterval(), cfg.Location, zlog.Named("session")).
		WithPauseStore(settingsRepo)
	defer sessions.StopAll()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.NewRouter(taskSvc, notificationRepo, cfg.Location, cfg.AllowedOrigins(), zlog.Named("http")),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zlog.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("http", zap.Error(err))
		}
	}()

	users, err := userRepo.ListAll(ctx)
	if err != nil {
		zlog.Fatal("list users", zap.Error(err))
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	started := sessions.StartAll(ctx, ids)
	zlog.Info("reminder sessions resumed", zap.Int("started", started), zap.Int("users", len(ids)))

	if cfg.TelegramToken == "" {
		zlog.Info("TELEGRAM_TOKEN not set, bot disabled")
		<-ctx.Done()
	} else {
		telegramBot, err := bot.New(cfg.TelegramToken, userRepo, settingsRepo, taskSvc, sessions, cfg.PushRatePerSecond, cfg.Location, zlog.Named("bot"))
		if err != nil {
			zlog.Fatal("bot", zap.Error(err))
		}
		notifySvc.AddChannel(telegramBot)

		if cfg.DailyAgendaTime != "" {
			scheduler := service.NewSchedulerService(cfg.Location, zlog)
			if _, err := scheduler.ScheduleDaily(cfg.DailyAgendaTime, func() {
				jobCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
				defer cancel()
				if err := telegramBot.SendDailyAgenda(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
					zlog.Warn("daily agenda", zap.Error(err))
				}
			}); err != nil {
				zlog.Fatal("schedule agenda", zap.Error(err))
			}
			scheduler.Start()
			defer scheduler.Stop()
		}

		zlog.Info("care scheduler bot started")
		if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zlog.Error("bot stopped with error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	zlog.Info("shutdown complete")
}
