// Package dialog provides the save and open dialogs the host shows on behalf
// of the content process.
package dialog

import (
	"context"
	"path/filepath"
	"strings"
)

// Filter restricts a dialog to a set of file extensions. The extension "*"
// matches every file.
type Filter struct {
	Name       string
	Extensions []string
}

// Matches reports whether path is accepted by the filter
func (f Filter) Matches(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, allowed := range f.Extensions {
		if allowed == "*" || allowed == ext {
			return true
		}
	}
	return false
}

// Filters used by the host dialogs
var (
	SaveFilters = []Filter{
		{Name: "Text files", Extensions: []string{"txt"}},
		{Name: "Markdown", Extensions: []string{"md"}},
		{Name: "HTML", Extensions: []string{"html"}},
	}

	OpenFilters = []Filter{
		{Name: "Text files", Extensions: []string{"txt", "md"}},
		{Name: "All files", Extensions: []string{"*"}},
	}
)

// Accepts reports whether any of the filters match path. An empty filter
// list accepts everything.
func Accepts(filters []Filter, path string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f.Matches(path) {
			return true
		}
	}
	return false
}

// Options configures one dialog
type Options struct {
	Title       string
	DefaultPath string
	Filters     []Filter
}

// Result is the outcome of a dialog. Canceled is a normal outcome, not an
// error.
type Result struct {
	Canceled  bool
	FilePaths []string
}

// FilePath returns the first chosen path or ""
func (r Result) FilePath() string {
	if r.Canceled || len(r.FilePaths) == 0 {
		return ""
	}
	return r.FilePaths[0]
}

// Canceled is the result of a dismissed dialog
func Canceled() Result {
	return Result{Canceled: true}
}

// Chosen is the result of a confirmed dialog
func Chosen(paths ...string) Result {
	return Result{FilePaths: paths}
}

// Dialogs shows native-style file dialogs. Implementations block until the
// user answers or ctx is done.
type Dialogs interface {
	ShowSaveDialog(ctx context.Context, opts Options) (Result, error)
	ShowOpenDialog(ctx context.Context, opts Options) (Result, error)
}
