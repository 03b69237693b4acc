package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"care-planner/internal/api"
	"care-planner/internal/bot"
	"care-planner/internal/cache"
	"care-planner/internal/config"
	"care-planner/internal/logging"
	"care-planner/internal/repository"
	"care-planner/internal/service"
	"care-planner/internal/transcribe"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, syncLog, err := logging.New(logging.Options{File: cfg.LogFile, Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer syncLog()

	db, err := repository.NewDB(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatalw("open database", "dsn", cfg.DatabaseURL, "error", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatalw("database handle", "error", err)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	planCache, redisClient, err := cache.Connect(startCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
	cancelStart()
	if err != nil {
		logger.Fatalw("connect redis", "addr", cfg.RedisAddr, "error", err)
	}
	if planCache == nil {
		logger.Infow("REDIS_ADDR not set, plan cache disabled")
	}

	var transcriber service.Transcriber
	if cfg.OpenAIAPIKey != "" {
		t, err := transcribe.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ChatModel, cfg.TranscriptionModel)
		if err != nil {
			logger.Fatalw("transcription client", "error", err)
		}
		transcriber = t
	} else {
		logger.Infow("OPENAI_API_KEY not set, voice messages disabled")
	}

	userRepo := repository.NewUserRepository(db)
	planRepo := repository.NewCarePlanRepository(db)
	caregiverRepo := repository.NewCaregiverRepository(db)

	planSvc := service.NewCarePlanService(planRepo, planCache, transcriber, logger.Named("careplan"), service.WithLocation(cfg.Location))
	caregiverSvc, err := service.NewCaregiverService(caregiverRepo, planSvc, logger.Named("caregiver"))
	if err != nil {
		logger.Fatalw("caregiver service", "error", err)
	}
	reminderSvc := service.NewReminderService(planRepo, caregiverRepo)

	operations := map[string]gfshutdown.Operation{}

	if cfg.JWTSecret != "" {
		server := api.NewServer(cfg.HTTPAddr, api.NewTokenVerifier(cfg.JWTSecret), userRepo, planSvc, caregiverSvc, planCache, logger.Named("http"))
		server.Start()
		operations["http-server"] = server.Stop
	}

	if cfg.TelegramToken != "" {
		telegramBot, err := bot.New(cfg.TelegramToken, userRepo, planSvc, caregiverSvc, reminderSvc, cfg.ReminderInterval, logger.Named("bot"))
		if err != nil {
			logger.Fatalw("telegram bot", "error", err)
		}
		botCtx, stopBot := context.WithCancel(context.Background())
		go func() {
			if err := telegramBot.Start(botCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorw("bot stopped with error", "error", err)
			}
		}()
		operations["telegram-bot"] = func(ctx context.Context) error {
			stopBot()
			return nil
		}

		scheduler := service.NewSchedulerService(cfg.Location, logger.Named("scheduler"))
		if _, err := scheduler.ScheduleDaily("digest", cfg.DigestTime, telegramBot.SendDigests); err != nil {
			logger.Fatalw("schedule digest", "error", err)
		}
		if _, err := scheduler.ScheduleInterval("reminders", cfg.ReminderInterval, telegramBot.SendReminders); err != nil {
			logger.Fatalw("schedule reminders", "error", err)
		}
		scheduler.Start()
		operations["scheduler"] = scheduler.Stop
	}

	logger.Infow("care planner started", "http", cfg.JWTSecret != "", "telegram", cfg.TelegramToken != "", "cache", planCache != nil)

	wait := gfshutdown.GracefulShutdown(context.Background(), cfg.ShutdownTimeout, operations)
	exitCode := <-wait

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warnw("close redis", "error", err)
		}
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warnw("close database", "error", err)
	}
	logger.Infow("shutdown complete", "exit_code", exitCode)
	syncLog()
	os.Exit(exitCode)
}

