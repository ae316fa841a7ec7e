package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var (
		serverFlag  string
		timeoutFlag time.Duration
	)
	clientFn := func() *client { return newClient(serverFlag, timeoutFlag) }

	rootCmd := &cobra.Command{
		Use:           "notifyctl",
		Short:         "Editorial notification engine CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	defaultServer := os.Getenv("NOTIFYCTL_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", defaultServer, "Base URL of the editorial-notify server")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(newFireCommand(clientFn))
	rootCmd.AddCommand(newScheduledCommand(clientFn))
	rootCmd.AddCommand(newChannelCommand(clientFn))

	return rootCmd
}
