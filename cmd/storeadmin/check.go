package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"storeadmin/internal/app"
)

func newCheckAccessCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "check-access",
		Short: "Sign in, report whether the account may use the console, and sign out",
		Long: "check-access signs in with --email and the password in STOREADMIN_PASSWORD,\n" +
			"waits for the profile to resolve, prints the decision and navigation, then signs out.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password := os.Getenv("STOREADMIN_PASSWORD")
			if email == "" || password == "" {
				return errors.New("--email and STOREADMIN_PASSWORD are required")
			}
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			// The diagnostic session must not touch the console's persisted one.
			rt, err := build(ctx, cfg, logger, withoutPersistence, withStderr(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer rt.close()

			var notices []app.Notice
			remove := rt.auth.OnNotice(func(n app.Notice) { notices = append(notices, n) })
			defer remove()

			if err := rt.auth.Init(ctx); err != nil {
				return err
			}
			if err := rt.auth.SignIn(ctx, email, password); err != nil {
				return err
			}

			waitCtx, cancel := context.WithTimeout(ctx, cfg.ResolveTimeout+5*time.Second)
			defer cancel()
			snap, err := rt.auth.Await(waitCtx)
			if err != nil {
				return fmt.Errorf("waiting for profile: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status:   %s\n", snap.Status)
			fmt.Fprintf(out, "decision: %s\n", snap.Decision())
			for _, n := range notices {
				fmt.Fprintf(out, "notice:   %s\n", n.Message)
			}

			switch app.Gate(snap) {
			case app.GateMount:
				names := make([]string, 0, 7)
				for _, item := range app.Navigation(snap.Profile.Role) {
					names = append(names, item.Name)
				}
				fmt.Fprintf(out, "role:     %s\n", snap.Profile.Role)
				fmt.Fprintf(out, "pages:    %s\n", strings.Join(names, ", "))
				return rt.auth.SignOut(ctx)
			case app.GateUnresolvable:
				_ = rt.auth.SignOut(ctx)
				return snap.Err
			default:
				return errors.New("account may not use the console")
			}
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	return cmd
}
