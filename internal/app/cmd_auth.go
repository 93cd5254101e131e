package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hitoshi/tripplanner/internal/model"
)

// passwordEnv はパスワードをフラグ以外で渡すための環境変数。
const passwordEnv = "TRIPPLANNER_PASSWORD"

type credentials struct {
	email    string
	password string
}

func (c *credentials) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.email, "email", "", "Email address")
	cmd.Flags().StringVar(&c.password, "password", "", "Password (or set "+passwordEnv+")")
	_ = cmd.MarkFlagRequired("email")
}

func (c *credentials) resolvedPassword() (string, error) {
	if c.password != "" {
		return c.password, nil
	}
	if p := os.Getenv(passwordEnv); p != "" {
		return p, nil
	}
	return "", errors.New("password is required (--password or " + passwordEnv + ")")
}

func (a *cli) loginCommand() *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := creds.resolvedPassword()
			if err != nil {
				return err
			}
			return a.withContainer(cmd, func(ctx context.Context, c *container) error {
				if err := c.auth.Login(ctx, creds.email, password); err != nil {
					return err
				}
				return a.printSession(c.auth.Session())
			})
		},
	}
	creds.bind(cmd)
	return cmd
}

func (a *cli) registerCommand() *cobra.Command {
	var (
		creds       credentials
		displayName string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and register it with the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := creds.resolvedPassword()
			if err != nil {
				return err
			}
			return a.withContainer(cmd, func(ctx context.Context, c *container) error {
				if err := c.auth.Register(ctx, creds.email, password, displayName); err != nil {
					return err
				}

				// バックエンドへの登録失敗はアカウント作成の失敗としない
				if err := c.users.RegisterIdentity(ctx, c.auth.Session().User); err != nil {
					slog.Warn("failed to register user with backend", slog.String("error", err.Error()))
				}
				return a.printSession(c.auth.Session())
			})
		},
	}
	creds.bind(cmd)
	cmd.Flags().StringVar(&displayName, "name", "", "Display name")
	return cmd
}

func (a *cli) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd, func(ctx context.Context, c *container) error {
				if err := c.auth.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "ログアウトしました")
				return nil
			})
		},
	}
}

func (a *cli) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd, func(ctx context.Context, c *container) error {
				return a.printSession(c.auth.Session())
			})
		},
	}
}

func (a *cli) verifyEmailCommand() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "verify-email",
		Short: "Send a verification email, or check the verification status with --check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd, func(ctx context.Context, c *container) error {
				if check {
					if err := c.auth.ReloadUser(ctx); err != nil {
						return err
					}
					return a.printSession(c.auth.Session())
				}
				if err := c.auth.SendVerificationEmail(ctx); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "確認メールを送信しました（確認済みの場合は送信しません）")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Reload the account and show the verification status")
	return cmd
}

// sessionView はセッションの表示用表現。トークンは含めない。
type sessionView struct {
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email,omitempty"`
	DisplayName   string `json:"displayName,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
}

func newSessionView(s model.Session) sessionView {
	v := sessionView{Authenticated: s.Authenticated()}
	if s.User != nil {
		v.Email = s.User.Email
		v.DisplayName = s.User.DisplayName
		v.EmailVerified = s.User.EmailVerified
	}
	return v
}

func (a *cli) printSession(s model.Session) error {
	v := newSessionView(s)
	if a.jsonOutput {
		return a.printJSON(v)
	}
	if !v.Authenticated {
		fmt.Fprintln(a.out, "サインインしていません")
		return nil
	}
	fmt.Fprintf(a.out, "Email:    %s\nName:     %s\nVerified: %t\n", v.Email, v.DisplayName, v.EmailVerified)
	return nil
}
