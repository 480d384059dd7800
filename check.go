package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pathakanu/noteminder/internal/config"
	"github.com/pathakanu/noteminder/internal/notes"
	"github.com/pathakanu/noteminder/internal/supabase"
	"github.com/spf13/cobra"
)

const placeholderRef = "your-project-ref"

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Test the connection to the Supabase project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return runCheck(ctx, config.Load(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// runCheck verifies that the notes table and the auth service answer with
// the configured anon key.
func runCheck(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if strings.Contains(cfg.SupabaseURL, placeholderRef) {
		return fmt.Errorf("replace the placeholder SUPABASE_URL with your project's URL")
	}
	fmt.Fprintln(out, "Environment variables found")
	fmt.Fprintf(out, "URL: %s\n", cfg.SupabaseURL)
	fmt.Fprintf(out, "Key: %s...\n", prefix(cfg.SupabaseAnonKey, 20))

	client := supabase.New(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.HTTPTimeout(), nil)

	var rows []map[string]any
	if err := client.Select(ctx, "", notes.Table, supabase.Filter{Columns: "id", Limit: 1}, &rows); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	fmt.Fprintln(out, "Notes table accessible")

	if err := client.AuthHealth(ctx); err != nil {
		return fmt.Errorf("auth connection failed: %w", err)
	}
	fmt.Fprintln(out, "Auth connection successful")
	return nil
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
