package cli

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/clauselens/pkg/client"
	"github.com/turtacn/clauselens/pkg/errors"
	"github.com/turtacn/clauselens/pkg/types/job"
	"github.com/turtacn/clauselens/pkg/types/profile"
)

func newJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Submit and inspect asynchronous profiling jobs (needs --server)",
	}

	var wait bool
	submit := &cobra.Command{
		Use:   "submit [FILE|-]",
		Short: "Queue a document for profiling",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			api, err := cc.apiClient()
			if err != nil {
				return err
			}
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			ctx, cancel := cc.commandContext(cmd)
			defer cancel()

			ack, err := api.SubmitJob(ctx, client.ProfileRequest{Text: string(data)})
			if err != nil {
				return err
			}
			if !wait {
				if cc.OutputFormat == "json" {
					return printJSON(cmd.OutOrStdout(), ack)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ack.JobID, ack.Status)
				return nil
			}
			st, err := api.WaitJob(ctx, ack.JobID)
			if err != nil {
				return err
			}
			return printJobStatus(cmd, cc, st)
		},
	}
	submit.Flags().BoolVar(&wait, "wait", false, "poll until the job finishes")

	get := &cobra.Command{
		Use:   "get JOB_ID",
		Short: "Show a job and, once completed, its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			api, err := cc.apiClient()
			if err != nil {
				return err
			}
			ctx, cancel := cc.commandContext(cmd)
			defer cancel()
			st, err := api.GetJob(ctx, args[0])
			if err != nil {
				return err
			}
			return printJobStatus(cmd, cc, st)
		},
	}

	cmd.AddCommand(submit, get)
	return cmd
}

func statusColor(s job.Status) string {
	switch s {
	case job.StatusCompleted:
		return color.GreenString(string(s))
	case job.StatusFailed:
		return color.RedString(string(s))
	default:
		return color.YellowString(string(s))
	}
}

func printJobStatus(cmd *cobra.Command, cc *CLIContext, st *client.JobStatus) error {
	w := cmd.OutOrStdout()
	if cc.OutputFormat == "json" {
		return printJSON(w, st)
	}
	fmt.Fprintf(w, "Job %s: %s (attempts %d)\n", st.ID, statusColor(st.Status), st.Attempts)
	if st.Error != "" {
		fmt.Fprintln(w, color.RedString("  error: %s", st.Error))
	}
	if st.Result != nil && st.Result.Refined != nil {
		fmt.Fprintln(w)
		renderRefined(w, st.Result.Refined)
	}
	return nil
}

func newSearchCmd() *cobra.Command {
	var (
		bucket, jobID, docType string
		from, size             int
	)
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Full-text search over indexed clauses (needs --server)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if bucket != "" && !profile.Bucket(bucket).IsValid() {
				return errors.InvalidParam("unknown bucket").WithDetail(bucket)
			}
			api, err := cc.apiClient()
			if err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			ctx, cancel := cc.commandContext(cmd)
			defer cancel()

			res, err := api.SearchClauses(ctx, client.SearchRequest{
				Query: query, Bucket: profile.Bucket(bucket), JobID: jobID,
				DocumentType: docType, From: from, Size: size,
			})
			if err != nil {
				return err
			}
			if cc.OutputFormat == "json" {
				return printJSON(cmd.OutOrStdout(), res)
			}
			rows := make([][]string, 0, len(res.Hits))
			for _, h := range res.Hits {
				rows = append(rows, []string{
					strconv.FormatFloat(h.Score, 'f', 2, 64), h.Bucket, h.JobID, preview(h.Text),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d matches\n", res.Total)
			fmt.Fprint(cmd.OutOrStdout(), FormatTable([]string{"SCORE", "BUCKET", "JOB", "TEXT"}, rows))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&bucket, "bucket", "", "restrict to one bucket")
	f.StringVar(&jobID, "job-id", "", "restrict to one job")
	f.StringVar(&docType, "document-type", "", "restrict to one document type")
	f.IntVar(&from, "from", 0, "offset of the first hit")
	f.IntVar(&size, "size", 10, "hits per page")
	return cmd
}
