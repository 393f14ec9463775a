package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"mediashelf/internal/checkin"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusTags = map[statusKind]struct {
	label string
	color text.Colors
}{
	statusInfo:  {"INFO", text.Colors{text.FgBlue}},
	statusOK:    {"OK", text.Colors{text.FgGreen}},
	statusWarn:  {"WARN", text.Colors{text.FgYellow}},
	statusError: {"ERROR", text.Colors{text.FgRed, text.Bold}},
}

const statusLabelWidth = 16

// renderStatusLine prints "label: [TAG] message" with the tag colored when
// colorize is set.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	tag := statusTag(kind, colorize)
	if message != "" {
		tag += " " + message
	}
	return fmt.Sprintf("%-*s %s", statusLabelWidth, label+":", tag)
}

func statusTag(kind statusKind, colorize bool) string {
	spec, ok := statusTags[kind]
	if !ok {
		spec = statusTags[statusInfo]
	}
	tag := "[" + spec.label + "]"
	if colorize {
		return spec.color.Sprint(tag)
	}
	return tag
}

// countKind grades a counter: zero is OK, anything else is bad.
func countKind(n int, bad statusKind) statusKind {
	if n == 0 {
		return statusOK
	}
	return bad
}

// stateKind maps a check-in outcome onto a status kind.
func stateKind(state checkin.State) statusKind {
	switch state {
	case checkin.StateRegistered:
		return statusOK
	case checkin.StateDuplicate:
		return statusInfo
	case checkin.StateFailed, checkin.StateRolledBack:
		return statusWarn
	case checkin.StateRollbackFailed:
		return statusError
	default:
		return statusInfo
	}
}

// renderState prints a check-in state for a table cell.
func renderState(state checkin.State, colorize bool) string {
	if !colorize {
		return state.String()
	}
	return statusTags[stateKind(state)].color.Sprint(state.String())
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
