package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"recipebox/internal/accounts"
	"recipebox/internal/auth"
	"recipebox/internal/config"
	"recipebox/internal/db"
	"recipebox/internal/db/mock"
	applog "recipebox/internal/log"
)

var (
	loadConfigFunc   = config.Load
	openDatabaseFunc = func(cfg config.DatabaseConfig) (*gorm.DB, error) {
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, errors.New("DATABASE_URL must be set")
		}
		return db.Configure(cfg)
	}
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "manage: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "manage",
		Short:         "Administrative tasks for the recipe API database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevel == "" {
				return nil
			}
			return applog.SetLevel(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL for this command")

	root.AddCommand(
		newMigrateCmd(),
		newCreateSuperuserCmd(),
		newSeedCmd(),
		newPurgeTokensCmd(),
		newImportRecipesCmd(),
	)
	return root
}

// openDatabase loads the configuration and connects, migrating the schema.
func openDatabase() (*gorm.DB, error) {
	cfg, err := loadConfigFunc()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	database, err := openDatabaseFunc(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return database, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDatabase()
			if err != nil {
				return err
			}
			if err := db.AutoMigrate(database); err != nil {
				return fmt.Errorf("auto migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		},
	}
}

func newCreateSuperuserCmd() *cobra.Command {
	var email, password, name string

	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Create a staff account with superuser rights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(password) == "" {
				password = os.Getenv("RECIPEBOX_SUPERUSER_PASSWORD")
			}
			if strings.TrimSpace(password) == "" {
				return errors.New("a password is required (--password or RECIPEBOX_SUPERUSER_PASSWORD)")
			}

			database, err := openDatabase()
			if err != nil {
				return err
			}

			var opts []accounts.Option
			if strings.TrimSpace(name) != "" {
				opts = append(opts, accounts.WithName(name))
			}
			user, err := accounts.NewService(database).CreateSuperuser(cmd.Context(), email, password, opts...)
			if err != nil {
				return fmt.Errorf("create superuser: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Superuser %s created (id %d)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address of the new superuser")
	cmd.Flags().StringVar(&password, "password", "", "password of the new superuser")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo users, tags, ingredients and recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDatabase()
			if err != nil {
				return err
			}
			if err := mock.Seed(cmd.Context(), database); err != nil {
				return fmt.Errorf("seed database: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Demo data available for %s\n", mock.DemoEmail)
			return nil
		},
	}
}

func newPurgeTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-tokens",
		Short: "Delete expired API tokens and admin sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDatabase()
			if err != nil {
				return err
			}
			removed, err := auth.NewGormStore(database).PurgeExpired(cmd.Context())
			if err != nil {
				return fmt.Errorf("purge tokens: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired tokens\n", removed)
			return nil
		},
	}
}
