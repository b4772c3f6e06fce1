package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pillmate/pillmate/internal/api"
	"github.com/pillmate/pillmate/internal/cache"
	"github.com/pillmate/pillmate/internal/config"
	"github.com/pillmate/pillmate/internal/engine"
	"github.com/pillmate/pillmate/internal/events"
	"github.com/pillmate/pillmate/internal/handlers"
	"github.com/pillmate/pillmate/internal/metrics"
	"github.com/pillmate/pillmate/internal/notify"
	"github.com/pillmate/pillmate/internal/store"
	"github.com/pillmate/pillmate/internal/store/memory"
	"github.com/pillmate/pillmate/internal/store/postgres"
	"github.com/pillmate/pillmate/internal/telegram"
	"github.com/pillmate/pillmate/pkg/logger"
)

func main() {
	// Load .env if present; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel)
	l.Info("Starting PillMate...")

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		l.Info("Received shutdown signal...")
		cancel()
	}()

	// Document store
	var st store.Store
	switch cfg.Store {
	case "memory":
		l.Warn("Using in-memory store; documents are lost on restart")
		st = memory.New()
	default:
		db, err := config.NewDatabase(cfg.DatabaseURL, l)
		if err != nil {
			l.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.Migrate("migrations"); err != nil {
			l.Fatalf("Failed to run migrations: %v", err)
		}

		pgStore := postgres.New(db.DB, l)
		go func() {
			if err := pgStore.StartListener(ctx, cfg.DatabaseURL); err != nil {
				l.Errorf("Document listener error: %v", err)
			}
		}()
		st = pgStore
	}

	// Local cache mirrors courses and occurrence records
	localCache := cache.New(l)
	if err := localCache.Subscribe(st); err != nil {
		l.Fatalf("Failed to subscribe cache: %v", err)
	}
	defer localCache.Unsubscribe()

	m := metrics.New(prometheus.DefaultRegisterer)

	eng := engine.New(engine.Deps{
		Store:          st,
		Cache:          localCache,
		Scheduler:      notify.NewStoreScheduler(st, l),
		Events:         events.NewLogrusLogger(l),
		Metrics:        m,
		Logger:         l,
		DayStartHour:   cfg.DayStartHour,
		DayActiveHours: cfg.DayActiveHours,
	})

	// Telegram bot. The token may be absent in memory mode; the engine and
	// HTTP API run without the bot then.
	var bot *telegram.Bot
	if cfg.TelegramToken == "" {
		l.Warn("TELEGRAM_TOKEN not set; Telegram bot disabled")
	} else {
		bot, err = telegram.NewBot(cfg.TelegramToken, l)
		if err != nil {
			l.Fatalf("Failed to create Telegram bot: %v", err)
		}

		takenHandler := handlers.NewTakenHandler(eng, localCache, l)

		bot.RegisterCommand("start", handlers.NewStartHandler(l))
		bot.RegisterCommand("help", handlers.NewHelpHandler(l))
		bot.RegisterCommand("courses", handlers.NewCoursesHandler(localCache, l))
		bot.RegisterCommand("delcourse", handlers.NewDeleteCourseHandler(eng, localCache, l))
		bot.RegisterCommand("taken", takenHandler)
		bot.RegisterCallback("take:", takenHandler)
	}

	// Reminder dispatcher delivers due reminders to the configured chat
	dispatcher := notify.NewDispatcher(st, m, l)
	go dispatcher.Run(ctx, func(text string) {
		if bot == nil || cfg.ReminderChatID == 0 {
			l.Warn("Reminder delivery unconfigured; dropping reminder")
			return
		}
		if err := bot.SendMessage(cfg.ReminderChatID, text); err != nil {
			l.Errorf("Failed to deliver reminder: %v", err)
		}
	})

	// HTTP API
	apiServer := api.NewServer(eng, localCache, l)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: apiServer.Handler(),
	}

	go func() {
		l.Infof("HTTP server listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Errorf("HTTP server error: %v", err)
		}
	}()

	// Prometheus metrics
	metricsServer := &http.Server{
		Addr:    ":" + cfg.PrometheusPort,
		Handler: metrics.Handler(),
	}

	go func() {
		l.Infof("Metrics listening on :%s", cfg.PrometheusPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Errorf("Metrics server error: %v", err)
		}
	}()

	// Telegram bot polling
	if bot != nil {
		go func() {
			if err := bot.Start(ctx); err != nil {
				l.Errorf("Bot error: %v", err)
			}
		}()
	}

	l.Info("PillMate started successfully")

	<-ctx.Done()

	l.Info("Shutting down HTTP servers...")
	httpServer.Close()
	metricsServer.Close()

	l.Info("PillMate stopped")
}
