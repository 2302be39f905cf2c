package cli

import (
	"fmt"
	"strconv"

	"github.com/aihub/docsearch/internal/config"
	"github.com/aihub/docsearch/internal/database"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var migrationsPath string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *database.MigrationManager) error {
			if err := m.Up(); err != nil {
				return fmt.Errorf("migration up failed: %w", err)
			}
			cmd.Println("Migrations completed successfully")
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back all migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *database.MigrationManager) error {
			if err := m.Down(); err != nil {
				return fmt.Errorf("migration down failed: %w", err)
			}
			cmd.Println("Rollback completed successfully")
			return nil
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *database.MigrationManager) error {
			version, dirty, err := m.Version()
			if err != nil {
				return fmt.Errorf("failed to get version: %w", err)
			}
			if dirty {
				cmd.Printf("Current version: %d (dirty)\n", version)
				return nil
			}
			cmd.Printf("Current version: %d\n", version)
			return nil
		})
	},
}

var migrateForceCmd = &cobra.Command{
	Use:   "force [version]",
	Short: "Force the schema version without running migrations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return withMigrator(func(m *database.MigrationManager) error {
			if err := m.ForceVersion(uint(version)); err != nil {
				return fmt.Errorf("force version failed: %w", err)
			}
			cmd.Printf("Version forced to %d\n", version)
			return nil
		})
	},
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrationsPath, "path", "", "migrations directory (defaults to the embedded migrations)")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd, migrateForceCmd)
	rootCmd.AddCommand(migrateCmd)
}

// withMigrator 打开独立的迁移连接，执行后关闭
func withMigrator(fn func(m *database.MigrationManager) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)

	path := migrationsPath
	if path == "" {
		path = cfg.Database.MigrationsPath
	}

	m, err := database.OpenMigrationManager(cfg.Database.URL, path, log)
	if err != nil {
		return fmt.Errorf("failed to create migration manager: %w", err)
	}
	defer m.Close()

	return fn(m)
}

func loadConfig() (*config.Config, error) {
	if config.AppConfig != nil {
		return config.AppConfig, nil
	}
	if err := config.LoadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return config.AppConfig, nil
}
