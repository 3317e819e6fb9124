package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/cli"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or generate the configuration",
	}
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configGenCmd())
	cmd.AddCommand(configPathCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after all merges",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow()
		},
	}
}

func configGenCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "gen [path]",
		Short: "Write a commented example config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigPath()
			if len(args) == 1 {
				path = args[0]
			}
			return runConfigGen(path, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func configPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print which config file would be loaded",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigPath()
		},
	}
}

func runConfigShow() error {
	cfg, err := config.Load(configPath, nil)
	if err != nil {
		return err
	}
	if cfg.Siyuan.APIToken != "" {
		cfg.Siyuan.APIToken = "(redacted)"
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func runConfigGen(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.Generate(path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", cli.ShortenHome(path))
	return nil
}

func runConfigPath() error {
	if cf := loadedConfigFile(); cf != "" {
		fmt.Println(cf)
		return nil
	}
	fmt.Printf("%sno config file found (using defaults)%s\n", cli.Dim, cli.Reset)
	return nil
}
