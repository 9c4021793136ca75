// Package output provides formatted terminal output for volxfer commands.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Colors for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Output handles formatted output.
type Output struct {
	w        io.Writer
	useColor bool
}

// New creates a new output handler.
func New(w io.Writer) *Output {
	return &Output{
		w:        w,
		useColor: true,
	}
}

// SetColor enables or disables color output.
func (o *Output) SetColor(enabled bool) {
	o.useColor = enabled
}

// color returns the string wrapped in color codes if enabled.
func (o *Output) color(c, s string) string {
	if !o.useColor {
		return s
	}
	return c + s + colorReset
}

// Success prints a success notification.
func (o *Output) Success(msg string) {
	o.printf("%s %s\n", o.color(colorGreen, "✓"), msg)
}

// Error prints an error notification. Multi-line messages are indented
// under the first line.
func (o *Output) Error(msg string) {
	lines := strings.Split(strings.TrimSpace(msg), "\n")
	o.printf("%s %s\n", o.color(colorRed, "✗"), lines[0])
	for _, line := range lines[1:] {
		o.printf("    %s\n", o.color(colorGray, line))
	}
}

// Info prints an informational message.
func (o *Output) Info(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorBlue, "INFO"), fmt.Sprintf(format, args...))
}

// Warn prints a warning message.
func (o *Output) Warn(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorYellow, "WARN"), fmt.Sprintf(format, args...))
}

// Section prints a section header.
func (o *Output) Section(name string) {
	o.printf("\n%s\n", o.color(colorBold, name))
}

// List prints items one per line, or a placeholder when there are none.
func (o *Output) List(items []string, empty string) {
	if len(items) == 0 {
		o.printf("  %s\n", o.color(colorGray, empty))
		return
	}
	for _, item := range items {
		o.printf("  - %s\n", item)
	}
}

// Plain prints text without decoration.
func (o *Output) Plain(s string) {
	o.printf("%s\n", s)
}

func (o *Output) printf(format string, args ...any) {
	fmt.Fprintf(o.w, format, args...)
}
