package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"demodrop/internal/config"
)

func newConfigCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the demodrop configuration file",
	}
	cmd.AddCommand(newConfigInitCommand(cctx))
	cmd.AddCommand(newConfigShowCommand(cctx))
	return cmd
}

func newConfigInitCommand(cctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if cctx.configFlag != nil {
				path = *cctx.configFlag
			}
			if path == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}
			if err := config.WriteSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	return cmd
}

func newConfigShowCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.configValue()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "data_dir:   %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(out, "log_dir:    %s\n", cfg.Paths.LogDir)
			if cfg.Storage.Endpoint != "" {
				fmt.Fprintf(out, "storage:    %s (bucket %s)\n", cfg.Storage.Endpoint, cfg.Storage.Bucket)
			} else {
				fmt.Fprintf(out, "storage:    filesystem (%s)\n", cfg.Storage.LocalDir)
			}
			fmt.Fprintf(out, "max upload: %d MiB\n", cfg.Uploads.MaxFileMiB)
			if cfg.Email.APIKey != "" {
				fmt.Fprintf(out, "email:      enabled (from %s)\n", cfg.Email.From)
			} else {
				fmt.Fprintln(out, "email:      disabled")
			}
			return nil
		},
	}
}
