package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"grading_sync_v1/internal/service"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <submission-id>",
		Short: "同步单个送评单",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "submission-id")
			if err != nil {
				return err
			}
			c, err := ctx.ensureContainer()
			if err != nil {
				return err
			}

			result, err := c.Services.Sync.SyncOne(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSyncResults([]service.SyncResult{*result}))
			return nil
		},
	}
}

func newSyncAllCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-all <company-id>",
		Short: "同步卡店下全部未完成送评单",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "company-id")
			if err != nil {
				return err
			}
			c, err := ctx.ensureContainer()
			if err != nil {
				return err
			}

			batch, err := c.Services.Sync.SyncAll(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(batch.Results) > 0 {
				fmt.Fprintln(out, renderSyncResults(batch.Results))
			}
			if len(batch.Failures) > 0 {
				fmt.Fprintln(out, renderSyncFailures(batch.Failures))
			}
			fmt.Fprintf(out, "共 %d 单，成功 %d，失败 %d\n", batch.Total, len(batch.Results), len(batch.Failures))
			return nil
		},
	}
}

func parseIDArg(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("无效的 %s: %q", name, raw)
	}
	return id, nil
}

func renderSyncResults(results []service.SyncResult) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		step := r.Mapping.Step
		if r.Mapping.Unknown {
			step += " (" + r.Mapping.RawLabel + ")"
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.Submission.ID, 10),
			r.Submission.ExternalNumberValue(),
			step,
			strconv.Itoa(r.Submission.ProgressPercent) + "%",
			yesNo(r.Submission.GradesReady),
			yesNo(r.Changed),
		})
	}
	return renderTable(
		[]string{"ID", "External", "Step", "Progress", "Grades", "Changed"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	)
}

func renderSyncFailures(failures []service.SyncFailure) string {
	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []string{
			strconv.FormatInt(f.SubmissionID, 10),
			f.ExternalNumber,
			f.Err.Error(),
		})
	}
	return renderTable([]string{"ID", "External", "Error"}, rows, []columnAlignment{alignRight})
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
