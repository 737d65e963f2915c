package main

import (
	"fmt"
	"os"

	"goencode/internal/config"
	"goencode/internal/container"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// env is shared by every subcommand; it is built in the root pre-run hook
var env *container.Container

func main() {
	rootCmd := &cobra.Command{
		Use:   "goencode",
		Short: "Encoding model search and resampling statistics for EEG and DNN data",
		Long: `goencode fits ridge encoding models from stimulus features to EEG (or DNN
layer) responses, selects penalties per timepoint, and runs bootstrap and
permutation statistics on subject score matrices.

Configuration is read from the environment and an optional .env file.
Set DATABASE_URL to record artifacts in PostgreSQL; otherwise they live in
memory for the duration of the command.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			env, err = container.New(cfg)
			if err != nil {
				return err
			}
			if cfg.Database.Enabled() {
				return env.InitWithDatabase(cmd.Context())
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if env != nil {
				return env.Close()
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		newSearchCmd(),
		newBootstrapCmd(),
		newPermTestCmd(),
		newReportCmd(),
		newMigrateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
