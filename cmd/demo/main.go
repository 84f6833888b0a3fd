package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/pericarp/es/internal/examples"
	"github.com/pericarp/es/pkg/application"
	"github.com/pericarp/es/pkg/domain"
	"github.com/pericarp/es/pkg/infrastructure"
)

var (
	configFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pericarp-demo",
		Short: "Pericarp library demonstration CLI",
		Long: `A demonstration CLI showcasing the Pericarp library's
Domain-Driven Design, CQRS and Event Sourcing capabilities through a small
bank-account aggregate.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configFile != "" {
				os.Setenv("PERICARP_CONFIG_FILE", configFile)
			}
			if verbose {
				os.Setenv("PERICARP_LOGGING_LEVEL", "debug")
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(openAccountCmd())
	rootCmd.AddCommand(depositCmd())
	rootCmd.AddCommand(withdrawCmd())
	rootCmd.AddCommand(showAccountCmd())
	rootCmd.AddCommand(initDBCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open-account <account-id> <owner-id>",
		Short: "Open a new account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, ownerID := args[0], args[1]
			return runWithCommandBus(func(ctx context.Context, logger domain.Logger, bus *application.CommandBus) error {
				if err := application.DispatchCommand(ctx, bus, logger, examples.OpenAccount{
					AccountID: accountID,
					OwnerID:   ownerID,
				}); err != nil {
					return fmt.Errorf("open account: %w", err)
				}
				fmt.Printf("account %s opened for %s\n", accountID, ownerID)
				return nil
			})
		},
	}
}

func depositCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <account-id> <amount-cents>",
		Short: "Deposit funds into an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID := args[0]
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
			return runWithCommandBus(func(ctx context.Context, logger domain.Logger, bus *application.CommandBus) error {
				if err := application.DispatchCommand(ctx, bus, logger, examples.DepositFunds{
					AccountID:   accountID,
					AmountCents: amount,
				}); err != nil {
					return fmt.Errorf("deposit: %w", err)
				}
				fmt.Printf("deposited %d cents into %s\n", amount, accountID)
				return nil
			})
		},
	}
}

func withdrawCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <account-id> <amount-cents>",
		Short: "Withdraw funds from an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID := args[0]
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
			return runWithCommandBus(func(ctx context.Context, logger domain.Logger, bus *application.CommandBus) error {
				if err := application.DispatchCommand(ctx, bus, logger, examples.WithdrawFunds{
					AccountID:   accountID,
					AmountCents: amount,
				}); err != nil {
					return fmt.Errorf("withdraw: %w", err)
				}
				fmt.Printf("withdrew %d cents from %s\n", amount, accountID)
				return nil
			})
		},
	}
}

func showAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show-account <account-id>",
		Short: "Show an account's current balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID := args[0]
			return runWithAccountRoot(func(ctx context.Context, logger domain.Logger, root *examples.AccountRoot) error {
				account, found, err := root.Load(ctx, accountID)
				if err != nil {
					return fmt.Errorf("load account: %w", err)
				}
				if !found {
					fmt.Printf("account %s does not exist\n", accountID)
					return nil
				}
				fmt.Printf("account %s: owner=%s balance_cents=%d version=%d\n",
					accountID, account.OwnerID(), account.BalanceCents(), account.Version())
				return nil
			})
		},
	}
}

func initDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Initialize database",
		Long:  "Run the event-store and snapshot-store migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithDatabase(func(ctx context.Context, logger domain.Logger, db *gorm.DB) error {
				logger.Info("initializing database")
				wrapped := &infrastructure.Database{DB: db}
				if err := wrapped.Migrate(); err != nil {
					return fmt.Errorf("failed to run database migrations: %w", err)
				}
				fmt.Println("database initialized successfully")
				return nil
			})
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Pericarp Demo CLI v1.0.0")
			fmt.Println("Domain-Driven Design, CQRS and Event Sourcing for Go")
		},
	}
}

// demoApp assembles the fx.App this CLI runs against: domain, GORM-backed
// infrastructure, the command/query buses, and the account aggregate
// wired on top of whatever EventRepository/SnapshotRepository
// InfrastructureModule provides (AccountHandlersModule itself provides
// neither, so state persists across invocations via the configured
// database).
func demoApp(invoke fx.Option) *fx.App {
	return fx.New(
		domain.DomainModule,
		infrastructure.InfrastructureModule,
		application.ApplicationModule,
		examples.AccountHandlersModule,
		invoke,
	)
}

func runWithCommandBus(fn func(ctx context.Context, logger domain.Logger, bus *application.CommandBus) error) error {
	var result error
	done := make(chan struct{})

	app := demoApp(fx.Invoke(func(logger domain.Logger, bus *application.CommandBus) {
		defer close(done)
		result = fn(context.Background(), logger, bus)
	}))

	return runApp(app, done, &result)
}

func runWithAccountRoot(fn func(ctx context.Context, logger domain.Logger, root *examples.AccountRoot) error) error {
	var result error
	done := make(chan struct{})

	app := demoApp(fx.Invoke(func(logger domain.Logger, root *examples.AccountRoot) {
		defer close(done)
		result = fn(context.Background(), logger, root)
	}))

	return runApp(app, done, &result)
}

func runWithDatabase(fn func(ctx context.Context, logger domain.Logger, db *gorm.DB) error) error {
	var result error
	done := make(chan struct{})

	app := demoApp(fx.Invoke(func(logger domain.Logger, db *gorm.DB) {
		defer close(done)
		result = fn(context.Background(), logger, db)
	}))

	return runApp(app, done, &result)
}

func runApp(app *fx.App, done <-chan struct{}, result *error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	<-done

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()

	if err := app.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop application: %w", err)
	}

	return *result
}
