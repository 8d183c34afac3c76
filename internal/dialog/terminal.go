package dialog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prompter asks the user for input on a terminal
type Prompter interface {
	Text(prompt string, defaultValue string) (string, error)
	Confirm(prompt string, defaultValue bool) (bool, error)
	Select(prompt string, options []string, defaultOption string) (string, error)
}

// PtermPrompter prompts with pterm interactive printers
type PtermPrompter struct{}

// Text reads one line, prefilled with defaultValue
func (PtermPrompter) Text(prompt string, defaultValue string) (string, error) {
	return pterm.DefaultInteractiveTextInput.
		WithDefaultValue(defaultValue).
		Show(prompt)
}

// Confirm asks a yes/no question
func (PtermPrompter) Confirm(prompt string, defaultValue bool) (bool, error) {
	return pterm.DefaultInteractiveConfirm.
		WithDefaultValue(defaultValue).
		Show(prompt)
}

// Select lets the user pick one of options
func (PtermPrompter) Select(prompt string, options []string, defaultOption string) (string, error) {
	return pterm.DefaultInteractiveSelect.
		WithOptions(options).
		WithDefaultOption(defaultOption).
		Show(prompt)
}

// Terminal implements Dialogs with terminal prompts. An empty answer cancels
// the dialog.
type Terminal struct {
	prompter Prompter
	logger   zerolog.Logger
}

// NewTerminal creates terminal dialogs. A nil prompter uses pterm.
func NewTerminal(prompter Prompter) *Terminal {
	if prompter == nil {
		prompter = PtermPrompter{}
	}
	return &Terminal{
		prompter: prompter,
		logger:   log.With().Str("component", "dialog").Logger(),
	}
}

// ShowSaveDialog asks for a destination path
func (t *Terminal) ShowSaveDialog(ctx context.Context, opts Options) (Result, error) {
	return t.await(ctx, func() (Result, error) {
		title := opts.Title
		if title == "" {
			title = fmt.Sprintf("Save as (%s, empty to cancel)", describe(opts.Filters))
		}

		answer, err := t.prompter.Text(title, opts.DefaultPath)
		if err != nil {
			return Result{}, fmt.Errorf("save dialog failed: %w", err)
		}
		path := strings.TrimSpace(answer)
		if path == "" {
			return Canceled(), nil
		}

		path, err = filepath.Abs(expandHome(path))
		if err != nil {
			return Result{}, fmt.Errorf("save dialog failed: %w", err)
		}

		if !Accepts(opts.Filters, path) {
			t.logger.Debug().Str("path", path).Msg("Save path outside the dialog filters")
		}

		if _, statErr := os.Stat(path); statErr == nil {
			overwrite, err := t.prompter.Confirm(fmt.Sprintf("%s exists. Replace it?", path), false)
			if err != nil {
				return Result{}, fmt.Errorf("save dialog failed: %w", err)
			}
			if !overwrite {
				return Canceled(), nil
			}
		}

		return Chosen(path), nil
	})
}

// ShowOpenDialog asks for an existing file matching the filters
func (t *Terminal) ShowOpenDialog(ctx context.Context, opts Options) (Result, error) {
	return t.await(ctx, func() (Result, error) {
		title := opts.Title
		if title == "" {
			title = fmt.Sprintf("Open (%s, empty to cancel)", describe(opts.Filters))
		}

		for {
			answer, err := t.prompter.Text(title, opts.DefaultPath)
			if err != nil {
				return Result{}, fmt.Errorf("open dialog failed: %w", err)
			}
			path := strings.TrimSpace(answer)
			if path == "" {
				return Canceled(), nil
			}

			path, err = filepath.Abs(expandHome(path))
			if err != nil {
				return Result{}, fmt.Errorf("open dialog failed: %w", err)
			}

			info, statErr := os.Stat(path)
			switch {
			case statErr != nil:
				pterm.Warning.Printfln("No such file: %s", path)
			case info.IsDir():
				pterm.Warning.Printfln("%s is a directory", path)
			case !Accepts(opts.Filters, path):
				pterm.Warning.Printfln("%s does not match %s", path, describe(opts.Filters))
			default:
				return Chosen(path), nil
			}
		}
	})
}

// await runs a blocking prompt and gives up when ctx is done. The prompt
// goroutine finishes on its own once the user answers.
func (t *Terminal) await(ctx context.Context, prompt func() (Result, error)) (Result, error) {
	type outcome struct {
		result Result
		err    error
	}

	done := make(chan outcome, 1)
	go func() {
		result, err := prompt()
		done <- outcome{result, err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		t.logger.Debug().Msg("Dialog abandoned")
		return Canceled(), nil
	}
}

func describe(filters []Filter) string {
	var exts []string
	for _, f := range filters {
		for _, ext := range f.Extensions {
			exts = append(exts, "."+ext)
		}
	}
	if len(exts) == 0 {
		return "any file"
	}
	return strings.Join(exts, " ")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
