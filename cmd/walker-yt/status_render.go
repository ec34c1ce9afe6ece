package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"walkeryt/internal/runstore"
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

const statusLabelWidth = 18

var statusKinds = map[statusKind]struct{ label, color string }{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	meta := statusKinds[kind]
	status := "[" + meta.label + "]"
	if message != "" {
		status += " " + message
	}
	line := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", status)
	if colorize && meta.color != "" {
		return meta.color + line + ansiReset
	}
	return line
}

func renderSectionHeader(title string, colorize bool) string {
	line := "== " + strings.TrimSpace(title) + " =="
	if colorize {
		return ansiBlue + line + ansiReset
	}
	return line
}

// runStatusKind colors a run status in listings.
func runStatusKind(status runstore.Status) statusKind {
	switch status {
	case runstore.StatusFinished:
		return statusOK
	case runstore.StatusCancelled, runstore.StatusInterrupted:
		return statusWarn
	case runstore.StatusFailed, runstore.StatusProducerDied, runstore.StatusTimedOut:
		return statusError
	default:
		return statusInfo
	}
}

var statusCaser = cases.Title(language.English)

// statusTitle renders a stored status such as timed_out as "Timed Out".
func statusTitle(status runstore.Status) string {
	if status == "" {
		return "-"
	}
	return statusCaser.String(strings.ReplaceAll(string(status), "_", " "))
}

func colorStatus(status runstore.Status, colorize bool) string {
	text := statusTitle(status)
	if !colorize {
		return text
	}
	return statusKinds[runStatusKind(status)].color + text + ansiReset
}

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
