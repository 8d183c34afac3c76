package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nkkko/textai/internal/editor"
	"github.com/nkkko/textai/pkg/proto"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Console reads editing commands line by line. Lines starting with ':' are
// commands; any other line is appended to the document.
type Console struct {
	editor *editor.Editor
	view   editor.View
	in     io.Reader
	logger zerolog.Logger
}

// NewConsole creates a console driving e
func NewConsole(e *editor.Editor, view editor.View, in io.Reader) *Console {
	return &Console{
		editor: e,
		view:   view,
		in:     in,
		logger: log.With().Str("component", "console").Logger(),
	}
}

// Run reads commands until :quit, end of input or ctx is done
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The reader waits for each command to finish before reading again, so
	// prompts shown by a command own the terminal while they run
	lines := make(chan string)
	next := make(chan struct{})
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
			select {
			case <-next:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	pterm.Info.Println("Type text to append it; :help lists commands")

	for {
		select {
		case line := <-lines:
			quit, err := c.Execute(ctx, line)
			if err != nil {
				c.view.Alert(ctx, "Error", err.Error())
			}
			if quit {
				return nil
			}
			select {
			case next <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
		case err := <-readErr:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Execute runs one input line. It reports whether the console should stop.
func (c *Console) Execute(ctx context.Context, line string) (bool, error) {
	if !strings.HasPrefix(line, ":") {
		doc := c.editor.Document()
		text := line
		if doc.Text != "" {
			text = doc.Text + "\n" + line
		}
		c.editor.SetText(text)
		return false, nil
	}

	cmd, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)
	c.logger.Debug().Str("command", cmd).Msg("Console command")

	switch cmd {
	case "quit", "q":
		return true, nil
	case "new":
		c.editor.NewDocument(ctx)
	case "open":
		if arg == "" {
			return false, fmt.Errorf("usage: :open <path>")
		}
		return false, c.editor.OpenFile(ctx, arg)
	case "save":
		return false, c.editor.Save(ctx)
	case "saveas":
		return false, c.editor.SaveAs(ctx)
	case "export":
		return false, c.editor.Export(ctx)
	case "ai":
		if arg == "" {
			return false, fmt.Errorf("usage: :ai <%s>", joinActions())
		}
		return false, c.editor.RunAIAction(ctx, proto.AIAction(arg))
	case "apply":
		return false, c.editor.Apply(ctx)
	case "regen":
		return false, c.editor.Regenerate(ctx)
	case "discard":
		c.editor.Discard()
	case "select":
		return false, c.editor.Select(arg)
	case "show":
		c.view.ShowDocument(ctx, c.editor.Document())
	case "help":
		c.view.Alert(ctx, "Commands", commandHelp)
	default:
		return false, fmt.Errorf("unknown command :%s", cmd)
	}
	return false, nil
}

func joinActions() string {
	names := make([]string, len(proto.AIActions))
	for i, a := range proto.AIActions {
		names[i] = string(a)
	}
	return strings.Join(names, "|")
}

var commandHelp = strings.Join([]string{
	":new              new document",
	":open <path>      open a file",
	":save / :saveas   save the document",
	":export           export as txt, md or html",
	":select <text>    select text for AI tools",
	":ai <action>      run an AI tool (" + joinActions() + ")",
	":apply / :regen / :discard   handle the AI proposal",
	":show             print the document",
	":quit             leave",
}, "\n")
