package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"coachflow/internal/naming"
)

type parseView struct {
	Input       string `json:"input"`
	Parsed      bool   `json:"parsed"`
	StudentName string `json:"student_name,omitempty"`
	ClassDate   string `json:"class_date,omitempty"`
	RosterKey   string `json:"roster_key,omitempty"`
	Excluded    bool   `json:"excluded"`
	Canonical   string `json:"canonical,omitempty"`
	Transcript  string `json:"transcript,omitempty"`
}

func newParseCommand(ctx *commandContext) *cobra.Command {
	var fileID string
	cmd := &cobra.Command{
		Use:         "parse <filename>",
		Short:       "Show how a recording or transcript name is interpreted",
		Args:        cobra.ExactArgs(1),
		Annotations: skipConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			view := parseName(args[0], fileID)
			if ctx.jsonOutput() {
				return writeJSON(cmd, view)
			}
			out := cmd.OutOrStdout()
			if !view.Parsed {
				fmt.Fprintln(out, renderStatusLine("Parse", statusError, "no student name and YYYY-MM-DD date found", false))
				return fmt.Errorf("cannot parse %q", view.Input)
			}
			fmt.Fprintln(out, renderStatusLine("Student", statusInfo, view.StudentName, false))
			fmt.Fprintln(out, renderStatusLine("Class date", statusInfo, view.ClassDate, false))
			fmt.Fprintln(out, renderStatusLine("Roster key", statusInfo, view.RosterKey, false))
			if view.Excluded {
				fmt.Fprintln(out, renderStatusLine("Distribution", statusWarn, "excluded by marker", false))
			} else {
				fmt.Fprintln(out, renderStatusLine("Distribution", statusOK, "eligible", false))
			}
			if view.Canonical != "" {
				fmt.Fprintln(out, renderStatusLine("Canonical", statusInfo, view.Canonical, false))
				fmt.Fprintln(out, renderStatusLine("Transcript", statusInfo, view.Transcript, false))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fileID, "file-id", "", "Source file identifier used to build the canonical name")
	return cmd
}

func parseName(input, fileID string) parseView {
	view := parseView{Input: strings.TrimSpace(input)}
	parsed, ok := naming.Parse(view.Input)
	if !ok {
		return view
	}
	view.Parsed = true
	view.StudentName = parsed.StudentName
	view.ClassDate = parsed.ClassDate
	view.RosterKey = naming.NormalizeKey(parsed.StudentName)
	view.Excluded = strings.Contains(parsed.RawName, "*")

	switch {
	case naming.IsCanonicalRecording(view.Input):
		view.Canonical = view.Input
	case strings.TrimSpace(fileID) != "":
		view.Canonical = naming.CanonicalRecording(parsed.StudentName, parsed.ClassDate, fileID)
	}
	if view.Canonical != "" {
		view.Transcript = naming.TranscriptName(view.Canonical)
	}
	return view
}
