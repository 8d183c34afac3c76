// Package editor is the UI layer of the content process. It owns the
// document and reacts to host notifications delivered by the content adapter.
package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/nkkko/textai/internal/content"
	apierrors "github.com/nkkko/textai/internal/errors"
	"github.com/nkkko/textai/internal/processor"
	"github.com/nkkko/textai/pkg/proto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ProcessingFailedMessage is shown in place of a proposal when the
// processor fails
const ProcessingFailedMessage = "Processing failed. Please try again."

// ErrNoProposal is returned by Apply when there is nothing to apply
var ErrNoProposal = errors.New("no proposal to apply")

// ErrNoAction is returned by Regenerate before any AI action ran
var ErrNoAction = errors.New("no AI action to regenerate")

// Document is a snapshot of the editor's state
type Document struct {
	Text      string
	Selection string
	Path      string
}

// Stats returns the word and character counts of the text
func (d Document) Stats() (words int, chars int) {
	return len(strings.Fields(d.Text)), utf8.RuneCountInString(d.Text)
}

// Proposal is the result of an AI action awaiting apply or discard
type Proposal struct {
	Action    proto.AIAction
	Original  string
	Selection string
	Text      string
	Error     string
	Pending   bool

	seq uint64
}

// Ready reports whether the proposal can be applied
func (p *Proposal) Ready() bool {
	return p != nil && !p.Pending && p.Error == ""
}

// View renders editor output. Implementations must be safe for use from
// several goroutines.
type View interface {
	// Alert shows a message the user acknowledges
	Alert(ctx context.Context, title string, message string)

	// ChooseFormat asks for an export format; "" means the default
	ChooseFormat(ctx context.Context, formats []string) (string, error)

	// ShowProposal shows the pending or finished AI proposal
	ShowProposal(ctx context.Context, p Proposal)

	// ShowDocument shows the document after it changed
	ShowDocument(ctx context.Context, doc Document)
}

// Bridge is what the editor needs from the content adapter
type Bridge interface {
	SaveFile(ctx context.Context, content string, defaultPath string) (*string, error)
	ReadFile(ctx context.Context, path string) (string, error)
	SetupEventListeners(callbacks content.Callbacks)
	CleanupEventListeners()
}

// Editor holds the document and implements every host command
type Editor struct {
	mu         sync.Mutex
	doc        Document
	proposal   *Proposal
	lastAction proto.AIAction
	seq        uint64
	mounted    bool

	bridge    Bridge
	processor processor.Processor
	view      View
	now       func() time.Time
	wg        sync.WaitGroup
	logger    zerolog.Logger
}

// New creates an editor with an empty document
func New(bridge Bridge, proc processor.Processor, view View) *Editor {
	return &Editor{
		bridge:    bridge,
		processor: proc,
		view:      view,
		now:       time.Now,
		logger:    log.With().Str("component", "editor").Logger(),
	}
}

// Mount binds every host notification to the editor
func (e *Editor) Mount() {
	e.mu.Lock()
	e.mounted = true
	e.mu.Unlock()

	e.bridge.SetupEventListeners(content.Callbacks{
		OnNewDocument: e.NewDocument,
		OnOpenFile: func(ctx context.Context, path string) {
			e.report(ctx, "Open failed", e.OpenFile(ctx, path))
		},
		OnSaveDocument: func(ctx context.Context) {
			e.report(ctx, "Save failed", e.Save(ctx))
		},
		OnSaveDocumentAs: func(ctx context.Context) {
			e.report(ctx, "Save failed", e.SaveAs(ctx))
		},
		OnExportDocument: func(ctx context.Context) {
			e.report(ctx, "Export failed", e.Export(ctx))
		},
		// Processing takes seconds; later notifications must not wait on it
		OnAIAction: func(ctx context.Context, action proto.AIAction) {
			// Add only while mounted, so Unmount's Wait never races it
			e.mu.Lock()
			if !e.mounted {
				e.mu.Unlock()
				return
			}
			e.wg.Add(1)
			e.mu.Unlock()

			go func() {
				defer e.wg.Done()
				e.report(ctx, "AI action failed", e.RunAIAction(ctx, action))
			}()
		},
		OnOpenPreferences: e.Preferences,
		OnShowHelp:        e.Help,
		OnShowShortcuts:   e.Shortcuts,
	})
}

// Unmount removes every listener and waits for running AI actions
func (e *Editor) Unmount() {
	e.bridge.CleanupEventListeners()

	e.mu.Lock()
	e.mounted = false
	e.mu.Unlock()

	e.wg.Wait()
}

// Mounted reports whether the editor is bound to the bridge
func (e *Editor) Mounted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mounted
}

// Document returns a snapshot of the document
func (e *Editor) Document() Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc
}

// Proposal returns a copy of the current proposal, or nil
func (e *Editor) Proposal() *Proposal {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proposal == nil {
		return nil
	}
	p := *e.proposal
	return &p
}

// SetText replaces the document text and clears a selection that no longer
// occurs in it
func (e *Editor) SetText(text string) {
	e.mu.Lock()
	e.doc.Text = text
	if !strings.Contains(text, e.doc.Selection) {
		e.doc.Selection = ""
	}
	e.mu.Unlock()
}

// Select marks part of the text as the selection. It must occur in the text.
func (e *Editor) Select(selection string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if selection != "" && !strings.Contains(e.doc.Text, selection) {
		return fmt.Errorf("selection %q does not occur in the document", selection)
	}
	e.doc.Selection = selection
	return nil
}

// NewDocument clears the text and the selection
func (e *Editor) NewDocument(ctx context.Context) {
	e.mu.Lock()
	e.doc = Document{}
	e.proposal = nil
	doc := e.doc
	e.mu.Unlock()

	e.logger.Debug().Msg("New document")
	e.view.ShowDocument(ctx, doc)
}

// OpenFile loads path through the host. On failure the document is left
// untouched.
func (e *Editor) OpenFile(ctx context.Context, path string) error {
	text, err := e.bridge.ReadFile(ctx, path)
	if err != nil {
		e.logger.Warn().Err(err).Str("path", path).Msg("Failed to open file")
		return err
	}

	e.mu.Lock()
	e.doc = Document{Text: text, Path: path}
	e.proposal = nil
	doc := e.doc
	e.mu.Unlock()

	e.view.ShowDocument(ctx, doc)
	return nil
}

// Save saves through the host dialog, seeded with the current path or a
// dated default name
func (e *Editor) Save(ctx context.Context) error {
	doc := e.Document()
	defaultPath := doc.Path
	if defaultPath == "" {
		defaultPath = DatedName(e.now(), FormatText)
	}
	return e.save(ctx, doc.Text, defaultPath, true)
}

// SaveAs saves through the host dialog with no suggested path
func (e *Editor) SaveAs(ctx context.Context) error {
	return e.save(ctx, e.Document().Text, "", true)
}

// Export renders the document in a chosen format and saves it
func (e *Editor) Export(ctx context.Context) error {
	format, err := e.view.ChooseFormat(ctx, ExportFormats)
	if err != nil {
		return fmt.Errorf("failed to choose export format: %w", err)
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatText
	}

	rendered, err := Render(e.Document().Text, format)
	if err != nil {
		return err
	}

	// An export is a copy; the document keeps its own path
	return e.save(ctx, rendered, DatedName(e.now(), format), false)
}

func (e *Editor) save(ctx context.Context, text string, defaultPath string, track bool) error {
	path, err := e.bridge.SaveFile(ctx, text, defaultPath)
	if err != nil {
		return err
	}
	if path == nil {
		e.logger.Debug().Msg("Save cancelled or downloaded")
		return nil
	}

	if track {
		e.mu.Lock()
		e.doc.Path = *path
		e.mu.Unlock()
	}
	e.logger.Info().Str("path", *path).Msg("Document saved")
	return nil
}

// RunAIAction processes the selection, or the whole text when nothing is
// selected, and stores the result as a proposal. Blank input raises an alert
// and is not processed.
func (e *Editor) RunAIAction(ctx context.Context, action proto.AIAction) error {
	e.mu.Lock()
	input := e.doc.Selection
	if input == "" {
		input = e.doc.Text
	}
	if strings.TrimSpace(input) == "" {
		e.mu.Unlock()
		e.view.Alert(ctx, "Nothing to process", "Select some text or write content before using the AI tools.")
		return nil
	}

	e.seq++
	p := &Proposal{
		Action:    action,
		Original:  input,
		Selection: e.doc.Selection,
		Pending:   true,
		seq:       e.seq,
	}
	e.proposal = p
	e.lastAction = action
	pending := *p
	e.mu.Unlock()

	e.view.ShowProposal(ctx, pending)

	result, err := e.processor.ProcessText(ctx, input, action)

	e.mu.Lock()
	if e.proposal == nil || e.proposal.seq != p.seq {
		// Superseded by a newer action or a new document
		e.mu.Unlock()
		return nil
	}
	e.proposal.Pending = false
	if err != nil {
		e.proposal.Error = ProcessingFailedMessage
	} else {
		e.proposal.Text = result
	}
	done := *e.proposal
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn().Err(err).Str("action", string(action)).Msg("Processing failed")
	}
	e.view.ShowProposal(ctx, done)
	return nil
}

// Apply replaces the first occurrence of the proposal's selection with the
// result, or the whole text when there was no selection
func (e *Editor) Apply(ctx context.Context) error {
	e.mu.Lock()
	p := e.proposal
	if !p.Ready() {
		e.mu.Unlock()
		return ErrNoProposal
	}

	if p.Selection != "" {
		e.doc.Text = strings.Replace(e.doc.Text, p.Selection, p.Text, 1)
	} else {
		e.doc.Text = p.Text
	}
	e.doc.Selection = ""
	e.proposal = nil
	doc := e.doc
	e.mu.Unlock()

	e.view.ShowDocument(ctx, doc)
	return nil
}

// Discard drops the current proposal
func (e *Editor) Discard() {
	e.mu.Lock()
	e.proposal = nil
	e.mu.Unlock()
}

// Regenerate reruns the last AI action on the current selection or text
func (e *Editor) Regenerate(ctx context.Context) error {
	e.mu.Lock()
	action := e.lastAction
	e.mu.Unlock()

	if action == "" {
		return ErrNoAction
	}
	return e.RunAIAction(ctx, action)
}

// Preferences shows the settings surface
func (e *Editor) Preferences(ctx context.Context) {
	e.view.Alert(ctx, "Preferences", PreferencesText)
}

// Help shows the user guide
func (e *Editor) Help(ctx context.Context) {
	e.view.Alert(ctx, "User Guide", HelpText)
}

// Shortcuts shows the keyboard shortcuts
func (e *Editor) Shortcuts(ctx context.Context) {
	e.view.Alert(ctx, "Keyboard Shortcuts", ShortcutsText)
}

// report shows a failed command to the user
func (e *Editor) report(ctx context.Context, title string, err error) {
	if err == nil {
		return
	}
	message := err.Error()
	var bridgeErr *apierrors.BridgeError
	if errors.As(err, &bridgeErr) && bridgeErr.Message != "" {
		message = bridgeErr.Message
	}
	e.view.Alert(ctx, title, message)
}

// Static texts
const (
	HelpText = "• Use the AI tools in the sidebar\n" +
		"• Select text for targeted changes\n" +
		"• Shortcuts: Cmd+S (save), Cmd+1-8 (AI tools)"

	ShortcutsText = "• Cmd+N: New document\n" +
		"• Cmd+O: Open\n" +
		"• Cmd+S: Save\n" +
		"• Cmd+Shift+S: Save as\n" +
		"• Cmd+E: Export\n" +
		"• Cmd+1: Improve\n" +
		"• Cmd+2: Translate\n" +
		"• Cmd+3: Correct\n" +
		"• Cmd+4: Summarize\n" +
		"• Cmd+5: Expand\n" +
		"• Cmd+6: Tone\n" +
		"• Cmd+7: Format\n" +
		"• Cmd+8: Optimize"

	PreferencesText = "Settings are coming soon:\n\n" +
		"• AI model configuration\n" +
		"• Interface preferences\n" +
		"• Keyboard shortcuts\n" +
		"• Third-party integrations"
)
