// Package ui holds the terminal presentation helpers used by the CLI: a small
// [lipgloss] palette for status lines and a byte progress bar for downloads that is
// only drawn when the output is a terminal.
package ui
