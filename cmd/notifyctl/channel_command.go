package main

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newChannelCommand(clientFn func() *client) *cobra.Command {
	channelCmd := &cobra.Command{
		Use:   "channel",
		Short: "Manage per-user channel preferences",
	}

	channelCmd.AddCommand(&cobra.Command{
		Use:   "get <user-id> <workflow-id>",
		Short: "Show the channel a user receives a workflow on",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, workflowID, err := parseIDs(args)
			if err != nil {
				return err
			}
			p, err := clientFn().GetChannel(cmd.Context(), userID, workflowID)
			if err != nil {
				return err
			}
			channel := p.Channel
			if channel == "" {
				channel = "(default)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %d, workflow %d: %s\n", userID, workflowID, channel)
			return nil
		},
	})

	channelCmd.AddCommand(&cobra.Command{
		Use:   "set <user-id> <workflow-id> <channel>",
		Short: "Route a workflow to a channel for a user (\"mute\" silences it)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, workflowID, err := parseIDs(args)
			if err != nil {
				return err
			}
			p, err := clientFn().SetChannel(cmd.Context(), userID, workflowID, args[2])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %d, workflow %d: %s\n", p.UserID, p.WorkflowID, p.Channel)
			return nil
		},
	})

	channelCmd.AddCommand(&cobra.Command{
		Use:   "clear <user-id> <workflow-id>",
		Short: "Drop a user's channel preference for a workflow",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, workflowID, err := parseIDs(args)
			if err != nil {
				return err
			}
			if err := clientFn().ClearChannel(cmd.Context(), userID, workflowID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %d, workflow %d: preference cleared\n", userID, workflowID)
			return nil
		},
	})

	return channelCmd
}

func parseIDs(args []string) (userID, workflowID int64, err error) {
	userID, err = strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, 0, errors.Newf("invalid user id %q", args[0])
	}
	workflowID, err = strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return 0, 0, errors.Newf("invalid workflow id %q", args[1])
	}
	return userID, workflowID, nil
}
