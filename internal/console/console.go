// Package console provides operator-facing output for fdep: colored status
// lines, the target summary table, confirmation prompts, and an indented
// writer for streaming command output.
package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	bgGreen     = "\033[42m"
	styleBright = "\033[1m"
	colorReset  = "\033[0m"
)

const ruler = "- - - - - - - - - - - - - - - - - - - -"

// Console writes status output and reads confirmations.
type Console struct {
	out         io.Writer
	in          *bufio.Reader
	color       bool
	interactive bool
}

// New creates a console on the given streams. Colors are enabled only when
// out is a terminal, prompts only when in is a terminal.
func New(in io.Reader, out io.Writer) *Console {
	return &Console{
		out:         out,
		in:          bufio.NewReader(in),
		color:       isTerminal(out),
		interactive: isTerminal(in),
	}
}

// SetColor forces colors on or off.
func (c *Console) SetColor(enabled bool) {
	c.color = enabled
}

// SetInteractive forces prompting on or off. A non-interactive console
// answers every confirmation with its default.
func (c *Console) SetInteractive(enabled bool) {
	c.interactive = enabled
}

// Writer returns the underlying output stream.
// Interactive reports whether prompts are shown to the operator.
func (c *Console) Interactive() bool {
	return c.interactive
}

func (c *Console) Writer() io.Writer {
	return c.out
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func (c *Console) paint(style, msg string) string {
	if !c.color {
		return msg
	}
	return style + msg + colorReset
}

func (c *Console) line(style, format string, args ...any) {
	fmt.Fprintln(c.out, c.paint(style, fmt.Sprintf(format, args...)))
}

// Info prints a step heading.
func (c *Console) Info(format string, args ...any) {
	c.line(colorBlue, format, args...)
}

// Done prints the success marker that closes a task.
func (c *Console) Done() {
	c.line(colorGreen+styleBright, "Done.")
}

// Success prints a highlighted success line.
func (c *Console) Success(format string, args ...any) {
	c.line(colorGreen+styleBright, format, args...)
}

// Warn prints a warning line.
func (c *Console) Warn(format string, args ...any) {
	c.line(colorYellow, format, args...)
}

// Error prints an error line.
func (c *Console) Error(format string, args ...any) {
	c.line(colorRed, format, args...)
}

// Notice prints a highlighted banner line.
func (c *Console) Notice(format string, args ...any) {
	c.line(bgGreen, format, args...)
}

// Print writes plain text.
func (c *Console) Print(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// Section prints a title between two rulers.
func (c *Console) Section(title string) {
	c.line(colorYellow, ruler)
	c.line(colorYellow, "%s", title)
	c.line(colorYellow, ruler)
}

// Ruler prints a ruler in the success color.
func (c *Console) Ruler() {
	c.line(colorGreen, ruler)
}

// Row prints a left-aligned label/value pair.
func (c *Console) Row(label, value string) {
	fmt.Fprintf(c.out, "%-10s %-8s\n", label, value)
}

// Confirm asks a yes/no question. An empty answer selects defaultYes.
func (c *Console) Confirm(question string, defaultYes bool) bool {
	if !c.interactive {
		return defaultYes
	}

	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}

	for {
		fmt.Fprintf(c.out, "%s %s ", question, suffix)

		input, err := c.in.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(input))
		switch answer {
		case "":
			return defaultYes
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		if err != nil {
			return defaultYes
		}
		fmt.Fprintln(c.out, "I didn't understand you. Please specify '(y)es' or '(n)o'.")
	}
}
