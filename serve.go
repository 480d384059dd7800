package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pathakanu/noteminder/internal/alert"
	"github.com/pathakanu/noteminder/internal/dashboard"
	"github.com/pathakanu/noteminder/internal/database"
	myopenai "github.com/pathakanu/noteminder/internal/openai"
	"github.com/pathakanu/noteminder/internal/reminder"
	"github.com/pathakanu/noteminder/internal/twilio"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard API and the reminder scheduler",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, runServe)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, a *app) error {
	cfg, logger := a.cfg, a.logger

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := alert.NewHub(logger)
	go hub.Run(hubCtx)

	var sender alert.Sender
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		sender = twilio.New(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber, logger)
	}
	summarizer := myopenai.New(cfg.OpenAIAPIKey, logger)
	if !summarizer.Enabled() {
		logger.Info("OPENAI_API_KEY not set, notification bodies are truncated")
	}
	notifier := alert.NewNotifier(cfg.NotificationsGranted(), cfg.NotifyWhatsAppTo, sender, summarizer)
	alerts := database.NewAlertLog(a.db)
	dispatcher := alert.NewDispatcher(alert.NewSound(cfg.SoundCommand, os.Stdout), notifier, hub, alerts, logger)

	scheduler := reminder.NewScheduler(dispatcher, logger, reminder.WithLocation(cfg.LocalTimezone))
	dash := dashboard.New(a.session, a.notes, scheduler, hub, alerts, logger)
	if err := dash.StartScheduler(); err != nil {
		return err
	}

	if _, ok := a.session.Current(); ok {
		if list, err := a.notes.List(ctx); err != nil {
			logger.Warn("initial note load failed", zap.Error(err))
		} else {
			scheduler.Sync(list)
		}
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           dash.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	waitForShutdown(server, dash, logger)
	return nil
}

func waitForShutdown(server *http.Server, dash *dashboard.Dashboard, logger *zap.Logger) {
	stopCtx := make(chan os.Signal, 1)
	signal.Notify(stopCtx, syscall.SIGINT, syscall.SIGTERM)
	<-stopCtx
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	dash.StopScheduler()
}
