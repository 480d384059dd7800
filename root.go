package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pathakanu/noteminder/internal/config"
	"github.com/pathakanu/noteminder/internal/database"
	"github.com/pathakanu/noteminder/internal/logging"
	"github.com/pathakanu/noteminder/internal/notes"
	"github.com/pathakanu/noteminder/internal/session"
	"github.com/pathakanu/noteminder/internal/supabase"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "noteminder",
	Short: "Notes with reminders, backed by Supabase",
	Long: `noteminder keeps personal notes in a hosted Supabase project and
alerts you when a note's reminder time arrives.`,
	SilenceUsage: true,
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// app holds the components shared by every command.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *gorm.DB
	client  *supabase.Client
	session *session.Session
	notes   *notes.Repository
}

// newApp loads configuration, opens local state and restores the saved
// session.
func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(cfg.LogDir, level)
	if err != nil {
		return nil, err
	}

	db, err := database.New(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	client := supabase.New(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.HTTPTimeout(), logger)
	sess := session.New(client, database.NewSessionStore(db), logger, session.WithRedirect(cfg.MagicLinkRedirect))
	if _, _, err := sess.Restore(ctx); err != nil {
		logger.Warn("could not restore session", zap.Error(err))
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		client:  client,
		session: sess,
		notes:   notes.NewRepository(client, sess, logger),
	}, nil
}

func (a *app) Close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.logger.Sync()
}

// withApp runs fn with a fresh app and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
