package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/idilsaglam/dayplan/internal/auth"
	"github.com/idilsaglam/dayplan/internal/ui"
)

type loginOptions struct {
	Token string
	CSRF  string
	User  string
}

func addAuth(topLevel *cobra.Command, a *App) {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Token authentication.",
	}

	lo := &loginOptions{}
	login := &cobra.Command{
		Use:   "login",
		Short: "Store an API token (prompted when --token is not given).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token := lo.Token
			if token == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Paste your token: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token: %w", err)
				}
				token = strings.TrimSpace(line)
			}
			if err := a.Auth.Set(auth.TokenInfo{Token: token, CSRFToken: lo.CSRF, User: lo.User}); err != nil {
				return err
			}
			ui.OK(cmd.OutOrStdout(), "logged in")
			return nil
		},
	}
	login.Flags().StringVar(&lo.Token, "token", "", "API token.")
	login.Flags().StringVar(&lo.CSRF, "csrf", "", "CSRF token sent with every change.")
	login.Flags().StringVar(&lo.User, "as", "", "User slug to use when --user is not given.")
	cmd.AddCommand(login)

	cmd.AddCommand(&cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ti, _ := a.Auth.Get()
			if ti != nil && ti.Source == "env" {
				ui.OK(cmd.OutOrStdout(), "token is provided by "+auth.EnvToken+" (nothing to delete)")
				return nil
			}
			if err := a.Auth.Delete(); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			ui.OK(cmd.OutOrStdout(), "logged out")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show where the token comes from and when it expires.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			ti, err := a.Auth.Get()
			if err != nil {
				return err
			}
			if ti == nil {
				fmt.Fprintln(out, ui.Current().Muted.Render("not logged in"))
				fmt.Fprintln(out, "Run: dayplan auth login")
				return nil
			}
			fmt.Fprintf(out, "source: %s\n", ti.Source)
			if ti.User != "" {
				fmt.Fprintf(out, "user: %s\n", ti.User)
			}
			if ti.ExpiresAt != nil {
				fmt.Fprintf(out, "expires: %s\n", ti.ExpiresAt.UTC().Format(time.RFC3339))
			} else {
				fmt.Fprintln(out, "expires: (unknown)")
			}
			fmt.Fprintln(out, "env override: "+auth.EnvToken)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "whoami",
		Short: "Decode the token locally when it is a JWT.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			ti, _ := a.Auth.Get()
			if ti == nil {
				return errors.New("not logged in. Run: dayplan auth login")
			}
			if p, ok := auth.JWTPayload(ti.Token); ok {
				fmt.Fprintln(out, "JWT payload:")
				fmt.Fprintln(out, p)
				return nil
			}
			fmt.Fprintln(out, "Opaque token (cannot introspect locally).")
			fmt.Fprintln(out, "source:", ti.Source)
			return nil
		},
	})

	topLevel.AddCommand(cmd)
}
