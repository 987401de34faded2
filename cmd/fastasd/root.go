package main

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/fastasd/pkg/log"
)

func newRootCmd() *cobra.Command {
	var level string
	root := &cobra.Command{
		Use:   "fastasd",
		Short: "Bayesian receptive-field estimation with ASD/fastASD",
		Long: `fastasd estimates smooth, localized linear receptive fields by
alternating between a Fourier-domain latent field, a dual weight estimate and
an evidence-driven hyperparameter update.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return log.SetupLoggerTo(cmd.ErrOrStderr(), level)
		},
	}
	root.PersistentFlags().StringVar(&level, "log-level", "warn", "log level: debug, info, warn or error")
	root.AddCommand(newRunCmd(), newSynthCmd())
	return root
}
