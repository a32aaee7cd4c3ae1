// Command create-admin provisions an administrator account in the panel's
// user store.
//
// Usage:
//
//	create-admin                                          # prompt for everything
//	create-admin --username=admin --email=a@b.co --password=secret
//
// All three flags must be given to skip the prompts. Exit status reflects how
// the run ended: 0 created, 2 invalid input, 3 user exists, 4 store failure,
// 1 startup failure.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/99minutos/create-admin/internal/core/service"
	"github.com/99minutos/create-admin/internal/infrastructure/db"
	"github.com/99minutos/create-admin/internal/infrastructure/directory"
	"github.com/99minutos/create-admin/internal/infrastructure/terminal"
	"github.com/99minutos/create-admin/internal/metrics"
	"github.com/99minutos/create-admin/internal/pkg/config"
	"github.com/99minutos/create-admin/pkg/logger"
)

const (
	exitOK          = 0
	exitStartup     = 1
	exitValidation  = 2
	exitDuplicate   = 3
	exitPersistence = 4
)

// runFunc executes one provisioning run.
type runFunc func(ctx context.Context, req service.Request)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := exitStartup
	cmd := newRootCmd(func(ctx context.Context, req service.Request) {
		code = provision(ctx, req)
	})
	if err := cmd.ExecuteContext(ctx); err != nil {
		// Flag errors; cobra has already printed them.
		stop()
		os.Exit(exitStartup)
	}
	stop()
	os.Exit(code)
}

func newRootCmd(run runFunc) *cobra.Command {
	var req service.Request

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a new admin user for the panel",
		Long: `Creates an administrator account in the panel's user store.

Without --username, --email and --password (all three) the command prompts
for each value and asks for the password twice with masked input.

The store is selected with STORE_DRIVER (sqlite, redis, mongo, memory) and
the bcrypt cost with SALT_ROUNDS (default 10).`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			run(cmd.Context(), req)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Username, "username", "", "username of the new admin")
	cmd.Flags().StringVar(&req.Email, "email", "", "email of the new admin")
	cmd.Flags().StringVar(&req.Password, "password", "", "password of the new admin (skips the prompt)")

	return cmd
}

func provision(ctx context.Context, req service.Request) int {
	stdoutTTY := term.IsTerminal(int(os.Stdout.Fd()))

	cfg, err := config.Load(ctx)
	if err != nil {
		log := logger.Init(logger.Options{Pretty: true, NoColor: !stdoutTTY})
		log.Error().Err(err).Msg("Failed to load configuration")
		return exitStartup
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Env == "development" || stdoutTTY,
		NoColor: !stdoutTTY,
	})

	store, err := db.Open(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to open user store")
		return exitStartup
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close user store")
		}
	}()
	log.Debug().Str("driver", cfg.Store.Driver).Str("key", cfg.Store.UsersKey).Msg("user store ready")

	dir := directory.New(store, directory.Options{Key: cfg.Store.UsersKey}, log)
	policy := service.NewCredentialPolicy(cfg.SaltRounds)
	tty := terminal.Stdio(log)

	p := service.NewProvisioner(dir, policy, tty, tty, cfg.PanelName, log)
	res, _ := p.Run(ctx, req)

	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			log.Warn().Err(err).Str("path", cfg.MetricsTextfile).Msg("Failed to write metrics")
		}
	}

	return exitCode(res.Outcome)
}

func exitCode(o service.Outcome) int {
	switch o {
	case service.OutcomeCompleted:
		return exitOK
	case service.OutcomeFailedValidation:
		return exitValidation
	case service.OutcomeFailedDuplicate:
		return exitDuplicate
	case service.OutcomeFailedPersistence:
		return exitPersistence
	default:
		return exitStartup
	}
}
