// Package color styles chatctl terminal output.
package color

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	promptColor    = color.New(color.FgCyan, color.Bold)
	infoColor      = color.New(color.FgGreen)
	warningColor   = color.New(color.FgYellow, color.Bold)
	errorColor     = color.New(color.FgRed, color.Bold)
	assistantColor = color.New(color.FgHiYellow, color.Bold)
	eventColor     = color.New(color.FgHiBlack)
)

func Prompt(s string) string {
	return promptColor.Sprint(s)
}

func Info(s string) string {
	return infoColor.Sprint(s)
}

func Warning(s string) string {
	return warningColor.Sprint(s)
}

func Error(s string) string {
	return errorColor.Sprint(s)
}

func Assistant(s string) string {
	return assistantColor.Sprint(s)
}

// Event renders protocol chatter that is not a reply.
func Event(s string) string {
	return eventColor.Sprint(s)
}

// DisableIfNotTTY turns styling off when stdout is piped.
func DisableIfNotTTY() {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}
