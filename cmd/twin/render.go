package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	cyan  = color.New(color.FgCyan).SprintFunc()
	gray  = color.New(color.FgHiBlack).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
)

func DeepError(msg string) string {
	return red("error: " + msg)
}

func DeepStatus(msg string) string {
	return gray(msg)
}

// isTTY reports whether both stdin and stdout are terminals.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// MarkdownRenderer renders assistant replies in the terminal.
type MarkdownRenderer struct {
	renderer *glamour.TermRenderer
}

// NewMarkdownRenderer sizes word wrap to the terminal. plainText selects a
// style without colour escapes for pipes.
func NewMarkdownRenderer(plainText bool) (*MarkdownRenderer, error) {
	termWidth := 80
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		termWidth = width - 4
		if termWidth > 120 {
			termWidth = 120
		}
	}

	style := glamour.WithStandardStyle("dark")
	if plainText {
		style = glamour.WithStandardStyle("notty")
	}
	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(termWidth))
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return &MarkdownRenderer{renderer: renderer}, nil
}

// Render returns content rendered as markdown, or content unchanged when
// rendering fails.
func (mr *MarkdownRenderer) Render(content string) string {
	if mr == nil || mr.renderer == nil || content == "" {
		return content
	}
	out, err := mr.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

func roleLabel(role string) string {
	switch role {
	case "user":
		return bold(cyan("you"))
	case "assistant":
		return bold(green("twin"))
	default:
		return bold(role)
	}
}
