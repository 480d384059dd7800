package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/pathakanu/noteminder/internal/errs"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Email a magic sign-in link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.session.RequestMagicLink(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Check your email for the login link!")
			fmt.Fprintf(cmd.OutOrStdout(), "Then run: noteminder verify %s <code>\n", args[0])
			return nil
		})
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <email> <token>",
	Short: "Sign in with the code from the magic link email",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			user, err := a.session.Verify(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", user.Email)
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the saved session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			a.session.SignOut(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			user, ok := a.session.Current()
			if !ok {
				return errors.Join(errs.ErrNotSignedIn, errors.New("run: noteminder login <email>"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", user.Email, user.ID)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, verifyCmd, logoutCmd, whoamiCmd)
}
