package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"coachflow/internal/homework"
	"coachflow/internal/tracking"
)

type jobView struct {
	Row       int    `json:"row"`
	FileName  string `json:"file_name"`
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp,omitempty"`
}

type assignmentView struct {
	Row          int    `json:"row"`
	HWID         string `json:"hw_id"`
	StudentID    string `json:"student_id"`
	StudentName  string `json:"student_name"`
	StudentEmail string `json:"student_email"`
	AssignedAt   string `json:"assigned_at,omitempty"`
	TokenStatus  string `json:"token_status"`
	TurnsUsed    int    `json:"turns_used"`
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect the tracking ledger",
	}

	var statusFilters []string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List transcription jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := make(map[tracking.Status]struct{}, len(statusFilters))
			for _, raw := range statusFilters {
				for _, part := range strings.Split(raw, ",") {
					if strings.TrimSpace(part) == "" {
						continue
					}
					status, ok := tracking.ParseStatus(part)
					if !ok {
						return fmt.Errorf("unknown status %q", strings.TrimSpace(part))
					}
					filter[status] = struct{}{}
				}
			}

			book, err := ctx.openBook(cmd.Context())
			if err != nil {
				return err
			}
			defer book.Close()
			cfg, _ := ctx.ensureConfig()
			sheet, err := book.Sheet(cmd.Context(), cfg.Ledger.TrackingSheet)
			if err != nil {
				return fmt.Errorf("open tracking sheet: %w", err)
			}
			ledger, err := tracking.OpenLedger(cmd.Context(), sheet)
			if err != nil {
				return err
			}
			records, err := ledger.Records(cmd.Context())
			if err != nil {
				return err
			}

			views := make([]jobView, 0, len(records))
			for _, rec := range records {
				if len(filter) > 0 {
					if _, ok := filter[rec.Status]; !ok {
						continue
					}
				}
				views = append(views, jobView{
					Row:       rec.Row,
					FileName:  rec.FileName,
					JobID:     rec.JobID,
					Status:    rec.Status.String(),
					Timestamp: formatTime(rec.Timestamp),
				})
			}
			return renderJobs(cmd, ctx, views)
		},
	}
	listCmd.Flags().StringSliceVarP(&statusFilters, "status", "s", nil, "Only show jobs with these statuses")

	jobsCmd.AddCommand(listCmd)
	return jobsCmd
}

func renderJobs(cmd *cobra.Command, ctx *commandContext, views []jobView) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, views)
	}
	out := cmd.OutOrStdout()
	if len(views) == 0 {
		fmt.Fprintln(out, "No jobs found")
		return nil
	}
	colorize := shouldColorize(out)
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			strconv.Itoa(v.Row),
			v.FileName,
			v.JobID,
			colorStatus(v.Status, colorize),
			v.Timestamp,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Row", "File", "Job ID", "Status", "Updated"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	))
	return nil
}

func newAssignmentsCommand(ctx *commandContext) *cobra.Command {
	assignmentsCmd := &cobra.Command{
		Use:   "assignments",
		Short: "Inspect the homework ledger",
	}

	var student string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List homework assignments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := ctx.openBook(cmd.Context())
			if err != nil {
				return err
			}
			defer book.Close()
			cfg, _ := ctx.ensureConfig()
			sheet, err := book.Sheet(cmd.Context(), cfg.Ledger.HomeworkSheet)
			if err != nil {
				return fmt.Errorf("open homework sheet: %w", err)
			}
			ledger, err := homework.OpenLedger(cmd.Context(), sheet)
			if err != nil {
				return err
			}
			assignments, err := ledger.Assignments(cmd.Context())
			if err != nil {
				return err
			}

			needle := strings.ToLower(strings.TrimSpace(student))
			views := make([]assignmentView, 0, len(assignments))
			for _, a := range assignments {
				if needle != "" && !strings.EqualFold(a.StudentID, needle) &&
					!strings.Contains(strings.ToLower(a.StudentName), needle) {
					continue
				}
				views = append(views, assignmentView{
					Row:          a.Row,
					HWID:         a.HWID,
					StudentID:    a.StudentID,
					StudentName:  a.StudentName,
					StudentEmail: a.StudentEmail,
					AssignedAt:   formatTime(a.AssignedAt),
					TokenStatus:  a.TokenStatus,
					TurnsUsed:    a.TurnsUsed,
				})
			}
			return renderAssignments(cmd, ctx, views)
		},
	}
	listCmd.Flags().StringVar(&student, "student", "", "Only show a student ID or names containing this text")

	assignmentsCmd.AddCommand(listCmd)
	return assignmentsCmd
}

func renderAssignments(cmd *cobra.Command, ctx *commandContext, views []assignmentView) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, views)
	}
	out := cmd.OutOrStdout()
	if len(views) == 0 {
		fmt.Fprintln(out, "No assignments found")
		return nil
	}
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			v.HWID,
			v.StudentID,
			v.StudentName,
			v.StudentEmail,
			v.AssignedAt,
			v.TokenStatus,
			strconv.Itoa(v.TurnsUsed),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"HW ID", "Student ID", "Name", "Email", "Assigned", "Token", "Turns"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	))
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
