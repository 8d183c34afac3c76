// Package ui renders the editor in a terminal and reads editing commands.
package ui

import (
	"context"
	"fmt"
	"sync"

	"github.com/nkkko/textai/internal/dialog"
	"github.com/nkkko/textai/internal/editor"
	"github.com/pterm/pterm"
)

// Ensure TerminalView implements editor.View
var _ editor.View = (*TerminalView)(nil)

// TerminalView draws editor output with pterm
type TerminalView struct {
	mu       sync.Mutex
	prompter dialog.Prompter
}

// NewTerminalView creates a view. A nil prompter uses pterm prompts.
func NewTerminalView(prompter dialog.Prompter) *TerminalView {
	if prompter == nil {
		prompter = dialog.PtermPrompter{}
	}
	return &TerminalView{prompter: prompter}
}

// Alert shows a boxed message
func (v *TerminalView) Alert(_ context.Context, title string, message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	pterm.DefaultBox.WithTitle(title).Println(message)
}

// ChooseFormat asks for an export format
func (v *TerminalView) ChooseFormat(_ context.Context, formats []string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(formats) == 0 {
		return "", nil
	}
	return v.prompter.Select("Export format", formats, formats[0])
}

// ShowProposal shows an AI proposal or its progress
func (v *TerminalView) ShowProposal(_ context.Context, p editor.Proposal) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch {
	case p.Pending:
		pterm.Info.Printfln("Running %s...", p.Action)
	case p.Error != "":
		pterm.Error.Println(p.Error)
		pterm.Println(pterm.Gray("  :regen to retry, :discard to close"))
	default:
		pterm.DefaultBox.WithTitle(fmt.Sprintf("AI: %s", p.Action)).Println(p.Text)
		pterm.Println(pterm.Gray("  :apply to use it, :regen for another take, :discard to close"))
	}
}

// ShowDocument prints the document with a status line
func (v *TerminalView) ShowDocument(_ context.Context, doc editor.Document) {
	v.mu.Lock()
	defer v.mu.Unlock()

	title := doc.Path
	if title == "" {
		title = "Untitled"
	}
	body := doc.Text
	if body == "" {
		body = pterm.Gray("(empty)")
	}
	pterm.DefaultBox.WithTitle(title).Println(body)

	words, chars := doc.Stats()
	status := fmt.Sprintf("%d words, %d characters", words, chars)
	if doc.Selection != "" {
		status += fmt.Sprintf(", selection: %q", doc.Selection)
	}
	pterm.Println(pterm.Gray(status))
}
