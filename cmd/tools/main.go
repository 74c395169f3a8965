// Command tools runs maintenance tasks against the configured store.
//
//	tools migrate                             apply pending sqlite migrations
//	tools create-admin <username> <password>  create an admin account
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"weatherapi-server/internal/app"
	"weatherapi-server/internal/auth"
	"weatherapi-server/internal/config"
	"weatherapi-server/internal/logging"
	"weatherapi-server/internal/modules/users/repository"
	"weatherapi-server/internal/modules/users/service"
	"weatherapi-server/internal/modules/users/types"
)

const usage = `usage: %s <command>
  migrate                             apply pending schema migrations
  create-admin <username> <password>  create an admin account
`

var errUsage = errors.New("usage")

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stderr, cfg, "dev", "weatherapi-tools")

	if err := run(context.Background(), cfg, logger, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, usage, os.Args[0])
		} else {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string, out io.Writer) error {
	if len(args) < 1 {
		return errUsage
	}
	switch args[0] {
	case "migrate":
		if len(args) != 1 {
			return errUsage
		}
	case "create-admin":
		if len(args) != 3 {
			return errUsage
		}
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}

	// Opening the store applies sqlite migrations and creates mongo indexes.
	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(ctx); closeErr != nil {
			logger.Error("db close", "err", closeErr)
		}
	}()

	if args[0] == "migrate" {
		fmt.Fprintln(out, "migrations applied")
		return nil
	}

	accountRepository, err := repository.NewRepository(store)
	if err != nil {
		return err
	}
	accounts := service.NewService(
		accountRepository,
		auth.NewTokenService(cfg.TokenSecret, cfg.TokenTTL),
		auth.NewPasswordHasher(cfg.BcryptCost),
		logger,
	)
	account, err := accounts.Create(ctx, types.CreateAccountRequest{
		Username: args[1],
		Password: args[2],
		Role:     string(auth.RoleAdmin),
	})
	if err != nil {
		return fmt.Errorf("create-admin: %w", err)
	}
	fmt.Fprintf(out, "admin %s created (id %s)\n", account.Username, account.ID)
	return nil
}
