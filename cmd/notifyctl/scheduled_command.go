package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newScheduledCommand(clientFn func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "scheduled",
		Short: "List pending scheduled notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := clientFn().Scheduled(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No scheduled notifications")
				return nil
			}

			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				post := ""
				if job.Args.Params.PostID != 0 {
					post = strconv.FormatInt(job.Args.Params.PostID, 10)
				}
				rows = append(rows, []string{
					job.RunAt.Local().Format(time.DateTime),
					strconv.FormatInt(job.WorkflowID, 10),
					string(job.Args.Kind),
					post,
					shortKey(job.Key),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run At", "Workflow", "Event", "Post", "Key"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
