package authctl

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/taxdesk/taxdesk/internal/app"
	"github.com/taxdesk/taxdesk/internal/config"
	"github.com/taxdesk/taxdesk/internal/tools/common"
	"github.com/taxdesk/taxdesk/internal/tools/ui"
)

type options struct {
	envFile string
	dataDir string
	backend string
	ci      bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "authctl", Short: "Auth store diagnostics"}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "path to env file")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "override data directory")
	cmd.PersistentFlags().StringVar(&opts.backend, "backend", "", "storage backend (file or sqlite)")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newStatusCommand(opts), newClientsCommand(opts), newSessionsCommand(opts))
	return cmd
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show master password, 2FA, and session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts, "authctl status", func(ctx context.Context) ([]string, error) {
				a, err := buildApp(opts)
				if err != nil {
					return nil, err
				}
				set, err := a.Auth.IsMasterPasswordSet()
				if err != nil {
					return nil, err
				}
				enabled := false
				if set {
					if enabled, err = a.Auth.IsMaster2FAEnabled(); err != nil {
						return nil, err
					}
				}
				sessions, err := a.Auth.ListSessions()
				if err != nil {
					return nil, err
				}
				return []string{
					"backend: " + a.Config.StorageBackend,
					"data dir: " + a.Config.DataDir,
					"master password set: " + yesNo(set),
					"master 2fa enabled: " + yesNo(enabled),
					fmt.Sprintf("active sessions: %d", len(sessions)),
				}, nil
			})
		},
	}
}

func newClientsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "clients", Short: "Client account tooling"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List client accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts, "authctl clients list", func(ctx context.Context) ([]string, error) {
				a, err := buildApp(opts)
				if err != nil {
					return nil, err
				}
				// Direct store read: the CLI runs as the operator on their
				// own machine, an interactive master login would add nothing.
				clients, err := a.Auth.ListClientsUnchecked()
				if err != nil {
					return nil, err
				}
				details := make([]string, 0, len(clients))
				for _, c := range clients {
					last := "never"
					if c.Credential.LastLogin != nil {
						last = c.Credential.LastLogin.Format(time.RFC3339)
					}
					details = append(details, fmt.Sprintf("%s  %s <%s>  active=%s  last_login=%s",
						c.ID, c.Name, c.Email, yesNo(c.IsActive), last))
				}
				if len(details) == 0 {
					details = append(details, "no client accounts")
				}
				return details, nil
			})
		},
	})
	return cmd
}

func newSessionsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "sessions", Short: "Session store tooling"}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Remove expired sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts, "authctl sessions purge", func(ctx context.Context) ([]string, error) {
				a, err := buildApp(opts)
				if err != nil {
					return nil, err
				}
				n, err := a.Auth.PurgeExpiredSessions()
				if err != nil {
					return nil, err
				}
				return []string{fmt.Sprintf("purged %d expired sessions", n)}, nil
			})
		},
	})
	return cmd
}

func run(opts *options, title string, action func(context.Context) ([]string, error)) error {
	if err := common.LoadEnvFile(opts.envFile); err != nil {
		return err
	}
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		details, err := action(ctx)
		common.PrintCIResult(err == nil, title, details, err)
		if err != nil {
			os.Exit(3)
		}
		return nil
	}
	_, err := ui.Run(title, action)
	return err
}

func buildApp(opts *options) (*app.App, error) {
	if opts.dataDir != "" {
		os.Setenv("TAXDESK_DATA_DIR", opts.dataDir)
	}
	if opts.backend != "" {
		os.Setenv("TAXDESK_STORAGE_BACKEND", opts.backend)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, nil)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
