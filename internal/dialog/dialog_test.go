package dialog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPrompter answers prompts from fixed queues
type scriptedPrompter struct {
	texts    []string
	confirms []bool
	asked    []string
	block    chan struct{}
}

func (p *scriptedPrompter) Text(prompt string, _ string) (string, error) {
	if p.block != nil {
		<-p.block
	}
	p.asked = append(p.asked, prompt)
	answer := p.texts[0]
	p.texts = p.texts[1:]
	return answer, nil
}

func (p *scriptedPrompter) Confirm(prompt string, _ bool) (bool, error) {
	p.asked = append(p.asked, prompt)
	answer := p.confirms[0]
	p.confirms = p.confirms[1:]
	return answer, nil
}

func (p *scriptedPrompter) Select(_ string, options []string, _ string) (string, error) {
	return options[0], nil
}

func TestFilterMatches(t *testing.T) {
	assert.True(t, Accepts(SaveFilters, "notes.MD"))
	assert.True(t, Accepts(SaveFilters, "/tmp/page.html"))
	assert.False(t, Accepts(SaveFilters, "image.png"))
	assert.True(t, Accepts(OpenFilters, "image.png"), "catch-all filter")
	assert.True(t, Accepts(nil, "anything"))
}

func TestResultFilePath(t *testing.T) {
	assert.Equal(t, "", Canceled().FilePath())
	assert.Equal(t, "/a", Chosen("/a", "/b").FilePath())
	assert.Equal(t, "", Result{}.FilePath())
}

func TestSaveDialogEmptyAnswerCancels(t *testing.T) {
	d := NewTerminal(&scriptedPrompter{texts: []string{"  "}})

	result, err := d.ShowSaveDialog(context.Background(), Options{DefaultPath: "document.txt", Filters: SaveFilters})
	require.NoError(t, err)
	assert.True(t, result.Canceled)
}

func TestSaveDialogReturnsAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.md")
	d := NewTerminal(&scriptedPrompter{texts: []string{target}})

	result, err := d.ShowSaveDialog(context.Background(), Options{Filters: SaveFilters})
	require.NoError(t, err)
	assert.False(t, result.Canceled)
	assert.Equal(t, target, result.FilePath())
}

func TestSaveDialogDeclinedOverwriteCancels(t *testing.T) {
	target := filepath.Join(t.TempDir(), "existing.txt")
	require.NoError(t, os.WriteFile(target, []byte("keep"), 0o644))

	p := &scriptedPrompter{texts: []string{target}, confirms: []bool{false}}
	result, err := NewTerminal(p).ShowSaveDialog(context.Background(), Options{})
	require.NoError(t, err)
	assert.True(t, result.Canceled)
	assert.Len(t, p.asked, 2)
}

func TestOpenDialogRepromptsUntilFileExists(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(existing, []byte("hi"), 0o644))

	p := &scriptedPrompter{texts: []string{filepath.Join(dir, "missing.txt"), dir, existing}}
	result, err := NewTerminal(p).ShowOpenDialog(context.Background(), Options{Filters: OpenFilters})
	require.NoError(t, err)
	assert.Equal(t, existing, result.FilePath())
	assert.Len(t, p.asked, 3)
}

func TestDialogAbandonedWhenContextEnds(t *testing.T) {
	p := &scriptedPrompter{texts: []string{"late.txt"}, block: make(chan struct{})}
	defer close(p.block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result, err := NewTerminal(p).ShowSaveDialog(ctx, Options{})
	require.NoError(t, err)
	assert.True(t, result.Canceled)
}
