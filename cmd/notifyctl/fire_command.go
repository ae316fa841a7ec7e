package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notifyhub/editorial-notify/internal/domain"
)

func newFireCommand(clientFn func() *client) *cobra.Command {
	var params domain.EventParams

	cmd := &cobra.Command{
		Use:   "fire <event>",
		Short: "Fire a content event",
		Long: "Fire a content event. Known events: " + knownEvents() + ".\n" +
			"Example: notifyctl fire transition_post_status --post 42 --from draft --to publish --actor 9",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := clientFn().Fire(cmd.Context(), domain.EventArgs{
				Kind:   domain.EventKind(args[0]),
				Params: params,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if resp.Error != "" {
				fmt.Fprintf(out, "Event %s not handled: %s\n", resp.Event, resp.Error)
				return nil
			}
			fmt.Fprintf(out, "Event %s matched %d workflow(s)\n", resp.Event, len(resp.Workflows))
			fmt.Fprintf(out, "Sent: %d  Duplicate: %d  Failed: %d  Scheduled: %d\n",
				resp.Sent, resp.Duplicate, resp.Failed, resp.Scheduled)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&params.PostID, "post", 0, "Content item ID")
	flags.StringVar(&params.OldStatus, "from", "", "Old status (transition events)")
	flags.StringVar(&params.NewStatus, "to", "", "New status (transition events)")
	flags.Int64Var(&params.ActorID, "actor", 0, "ID of the user who caused the event")
	flags.Int64Var(&params.CommentID, "comment", 0, "Editorial comment ID")
	flags.StringVar(&params.Taxonomy, "taxonomy", "", "Taxonomy (taxonomy events)")
	flags.Int64SliceVar(&params.TermIDs, "term", nil, "Term IDs (taxonomy events)")

	return cmd
}

func knownEvents() string {
	names := make([]string, len(domain.KnownEventKinds))
	for i, k := range domain.KnownEventKinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
