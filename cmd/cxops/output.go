package main

import (
	"fmt"
	"os"
)

// Console output goes to stderr: stdout is reserved for piped exports
// and for the MCP stdio transport in serve mode.

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func emit(color, mark, format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(color, mark+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) {
	emit(colorGreen, "✓ ", format, args...)
}

func printError(format string, args ...any) {
	emit(colorRed, "✗ ", format, args...)
}

func printWarning(format string, args ...any) {
	emit(colorYellow, "⚠ ", format, args...)
}

// printStatus renders one labelled line of a status or dashboard block.
func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(colorBold, label+":"), val)
}

func printStep(format string, args ...any) {
	emit(colorCyan, "→ ", format, args...)
}
