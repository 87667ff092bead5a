package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"coachflow/internal/tracking"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 14
	statusIndent     = "  "
)

// statusStyles maps each kind to its bracketed label and terminal color.
var statusStyles = map[statusKind]struct{ label, color string }{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

// renderStatusLine renders "  label:        [KIND] message", padded so
// consecutive lines align.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusStyles[kind]
	var b strings.Builder
	fmt.Fprintf(&b, "%s%-*s [%s]", statusIndent, statusLabelWidth, label+":", style.label)
	if message != "" {
		b.WriteString(" " + message)
	}
	return paint(b.String(), style.color, colorize)
}

// jobStatusKind groups tracking statuses for display: finished, failed,
// rejected or still moving.
func jobStatusKind(value string) statusKind {
	status, ok := tracking.ParseStatus(value)
	switch {
	case !ok:
		return statusWarn
	case status == tracking.StatusDone:
		return statusOK
	case status.IsError():
		return statusError
	case status == tracking.StatusRejected, status == tracking.StatusFetchingStatusError:
		return statusWarn
	default:
		return statusInfo
	}
}

func colorStatus(value string, colorize bool) string {
	return paint(value, statusStyles[jobStatusKind(value)].color, colorize)
}

// renderSectionHeader underlines a stage title for the run summary.
func renderSectionHeader(title string, colorize bool) []string {
	line := "== " + strings.TrimSpace(title) + " =="
	return []string{paint(line, ansiBlue, colorize), paint(strings.Repeat("-", len(line)), ansiBlue, colorize)}
}

func paint(value, color string, colorize bool) string {
	if !colorize || color == "" {
		return value
	}
	return color + value + ansiReset
}

// shouldColorize is true only for a terminal and only when NO_COLOR is unset.
func shouldColorize(w io.Writer) bool {
	f, isFile := w.(*os.File)
	if _, noColor := os.LookupEnv("NO_COLOR"); noColor || !isFile {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
