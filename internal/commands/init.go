package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/holvikit/holvi/internal/config"
)

func newInitCommand() *cobra.Command {
	var pool string
	var baseURL string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a holvi.yaml for a pool",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			path, err := runInit(absDir, pool, baseURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&pool, "pool", "", "Holvi pool handle (required)")
	_ = cmd.MarkFlagRequired("pool")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "API root, defaults to the public Holvi API")

	return cmd
}

func runInit(dir, pool, baseURL string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}

	path := filepath.Join(dir, DefaultConfigFile)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%s already exists", path)
	}

	cfg := config.Default(pool)
	if baseURL != "" {
		cfg.API.BaseURL = baseURL
	}
	cfg.AuditLog = "holvi-audit.csv"
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if err := config.Save(path, cfg); err != nil {
		return "", err
	}
	return path, nil
}
