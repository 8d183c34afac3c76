package host

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nkkko/textai/internal/bridge"
	"github.com/nkkko/textai/internal/dialog"
	apierrors "github.com/nkkko/textai/internal/errors"
	"github.com/nkkko/textai/internal/transport"
	"github.com/nkkko/textai/pkg/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDialogs returns canned results and records the options it was shown
type fakeDialogs struct {
	mu       sync.Mutex
	save     dialog.Result
	open     dialog.Result
	err      error
	saveOpts []dialog.Options
	openOpts []dialog.Options
}

func (f *fakeDialogs) ShowSaveDialog(_ context.Context, opts dialog.Options) (dialog.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveOpts = append(f.saveOpts, opts)
	return f.save, f.err
}

func (f *fakeDialogs) ShowOpenDialog(_ context.Context, opts dialog.Options) (dialog.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openOpts = append(f.openOpts, opts)
	return f.open, f.err
}

type fixture struct {
	host    *Host
	dialogs *fakeDialogs
	quit    chan struct{}
	ctx     context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dialogs := &fakeDialogs{save: dialog.Canceled(), open: dialog.Canceled()}
	quit := make(chan struct{}, 1)
	session := NewSession()
	dispatcher, err := NewDispatcher(session, dialogs, func() { quit <- struct{}{} })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return &fixture{
		host:    New(session, dispatcher, bridge.DefaultConfig()),
		dialogs: dialogs,
		quit:    quit,
		ctx:     ctx,
	}
}

// connect attaches a content endpoint as the window and returns it with a
// function that closes the window and waits for the host to notice
func (f *fixture) connect(t *testing.T) (*bridge.Endpoint, func()) {
	t.Helper()

	hostSide, contentSide := transport.Pipe(16)
	content := bridge.NewEndpoint(bridge.RoleContent, contentSide)

	served := make(chan error, 1)
	go func() { served <- f.host.ServeTransport(f.ctx, hostSide) }()
	go func() { _ = content.Run(f.ctx) }()

	require.Eventually(t, f.host.Ready, time.Second, 5*time.Millisecond)

	closeWindow := func() {
		_ = content.Close()
		select {
		case err := <-served:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("Host did not notice the window closing")
		}
	}
	return content, closeWindow
}

func expectNotification(t *testing.T, content *bridge.Endpoint, channel string) *proto.Envelope {
	t.Helper()
	select {
	case env := <-content.Inbound():
		assert.Equal(t, channel, env.Channel)
		return env
	case <-time.After(time.Second):
		t.Fatalf("Timeout waiting for %s", channel)
		return nil
	}
}

func expectSilence(t *testing.T, content *bridge.Endpoint) {
	t.Helper()
	select {
	case env := <-content.Inbound():
		t.Fatalf("Unexpected notification %s", env.Channel)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestSaveFileCancelledReturnsNullWithoutWriting(t *testing.T) {
	f := newFixture(t)
	content, _ := f.connect(t)
	dir := t.TempDir()

	result, err := content.Invoke(f.ctx, proto.ChannelSaveFile, "hello")
	require.NoError(t, err)
	assert.Nil(t, result)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.Len(t, f.dialogs.saveOpts, 1)
	assert.Equal(t, "document.txt", f.dialogs.saveOpts[0].DefaultPath)
	assert.Equal(t, dialog.SaveFilters, f.dialogs.saveOpts[0].Filters)
}

func TestSaveFileConfirmedWritesExactContent(t *testing.T) {
	f := newFixture(t)
	content, _ := f.connect(t)

	target := filepath.Join(t.TempDir(), "notes.md")
	f.dialogs.save = dialog.Chosen(target)
	body := "# Title\n\nUnicode: café ✓\r\nno trailing newline"

	result, err := content.Invoke(f.ctx, proto.ChannelSaveFile, body, "draft.md")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, target, *result)

	written, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, body, string(written))

	assert.Equal(t, "draft.md", f.dialogs.saveOpts[0].DefaultPath)
	assert.Equal(t, []string{target}, f.host.Recent())
}

func TestSaveFileWriteErrorIsIOError(t *testing.T) {
	f := newFixture(t)
	content, _ := f.connect(t)

	f.dialogs.save = dialog.Chosen(filepath.Join(t.TempDir(), "missing-dir", "out.txt"))

	_, err := content.Invoke(f.ctx, proto.ChannelSaveFile, "text")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierrors.ErrIO))
}

func TestSaveFileDialogFailureIsRejected(t *testing.T) {
	f := newFixture(t)
	content, _ := f.connect(t)

	f.dialogs.err = errors.New("no terminal")

	_, err := content.Invoke(f.ctx, proto.ChannelSaveFile, "text")
	assert.True(t, errors.Is(err, apierrors.ErrInternal))
}

func TestReadFileMissingIsIOError(t *testing.T) {
	f := newFixture(t)
	content, _ := f.connect(t)

	_, err := content.Invoke(f.ctx, proto.ChannelReadFile, filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierrors.ErrIO))
	assert.Empty(t, f.host.Recent())
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	f := newFixture(t)
	content, _ := f.connect(t)

	target := filepath.Join(t.TempDir(), "round.txt")
	f.dialogs.save = dialog.Chosen(target)
	body := "line one\nline two\n\ttabbed\n"

	saved, err := content.Invoke(f.ctx, proto.ChannelSaveFile, body)
	require.NoError(t, err)
	require.NotNil(t, saved)

	read, err := content.Invoke(f.ctx, proto.ChannelReadFile, *saved)
	require.NoError(t, err)
	require.NotNil(t, read)
	assert.Equal(t, body, *read)
}

func TestTriggerNotifiesChannels(t *testing.T) {
	f := newFixture(t)
	content, _ := f.connect(t)

	cases := map[string]string{
		ItemNew:         proto.ChannelNewDocument,
		ItemSave:        proto.ChannelSaveDocument,
		ItemSaveAs:      proto.ChannelSaveDocumentAs,
		ItemExport:      proto.ChannelExportDocument,
		ItemPreferences: proto.ChannelOpenPreferences,
		ItemHelp:        proto.ChannelShowHelp,
		ItemShortcuts:   proto.ChannelShowShortcuts,
	}
	for item, channel := range cases {
		require.NoError(t, f.host.Trigger(f.ctx, item))
		env := expectNotification(t, content, channel)
		assert.Empty(t, env.Args)
	}
}

func TestTriggerAIActions(t *testing.T) {
	f := newFixture(t)
	content, _ := f.connect(t)

	for _, action := range proto.AIActions {
		require.NoError(t, f.host.Trigger(f.ctx, AIItemID(action)))
		env := expectNotification(t, content, proto.ChannelAIAction)
		assert.Equal(t, []string{string(action)}, env.Args)
	}
}

func TestTriggerAccelerator(t *testing.T) {
	f := newFixture(t)
	content, _ := f.connect(t)
	d := f.host.Dispatcher()

	require.NoError(t, d.TriggerAccelerator(f.ctx, "ctrl+shift+s"))
	expectNotification(t, content, proto.ChannelSaveDocumentAs)

	require.NoError(t, d.TriggerAccelerator(f.ctx, "Command+1"))
	env := expectNotification(t, content, proto.ChannelAIAction)
	assert.Equal(t, "improve", env.Arg(0))

	err := d.TriggerAccelerator(f.ctx, "CmdOrCtrl+Alt+Z")
	assert.True(t, errors.Is(err, apierrors.ErrProtocol))
}

func TestTriggerUnknownItem(t *testing.T) {
	f := newFixture(t)
	err := f.host.Trigger(f.ctx, "format-disk")
	assert.True(t, errors.Is(err, apierrors.ErrProtocol))
}

func TestOpenConfirmedSendsPath(t *testing.T) {
	f := newFixture(t)
	content, _ := f.connect(t)

	f.dialogs.open = dialog.Chosen("/tmp/chosen.md")
	require.NoError(t, f.host.Trigger(f.ctx, ItemOpen))

	env := expectNotification(t, content, proto.ChannelOpenFile)
	assert.Equal(t, "/tmp/chosen.md", env.Arg(0))
	assert.Equal(t, dialog.OpenFilters, f.dialogs.openOpts[0].Filters)
}

func TestOpenCancelledSendsNothing(t *testing.T) {
	f := newFixture(t)
	content, _ := f.connect(t)

	require.NoError(t, f.host.Trigger(f.ctx, ItemOpen))
	expectSilence(t, content)
}

func TestTriggerWithoutWindowIsUnavailable(t *testing.T) {
	f := newFixture(t)

	assert.NotPanics(t, func() {
		err := f.host.Trigger(f.ctx, ItemNew)
		assert.True(t, errors.Is(err, apierrors.ErrUnavailable))

		err = f.host.Trigger(f.ctx, ItemOpen)
		assert.True(t, errors.Is(err, apierrors.ErrUnavailable))
	})
	assert.Empty(t, f.dialogs.openOpts, "no dialog without a window")
}

func TestQuit(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.host.Trigger(f.ctx, ItemQuit))

	select {
	case <-f.quit:
	default:
		t.Fatal("Quit callback not called")
	}
}

func TestSecondWindowIsRefused(t *testing.T) {
	f := newFixture(t)
	_, closeWindow := f.connect(t)
	defer closeWindow()

	hostSide, contentSide := transport.Pipe(1)
	err := f.host.ServeTransport(f.ctx, hostSide)
	assert.True(t, errors.Is(err, apierrors.ErrUnavailable))

	select {
	case <-contentSide.Done():
	default:
		t.Fatal("Refused link should be closed")
	}
}

func TestWindowRecreationReRegistersHandlers(t *testing.T) {
	f := newFixture(t)

	_, closeWindow := f.connect(t)
	closeWindow()
	assert.False(t, f.host.Ready())
	assert.Nil(t, f.host.Session().Window())

	content, _ := f.connect(t)
	target := filepath.Join(t.TempDir(), "again.txt")
	require.NoError(t, os.WriteFile(target, []byte("again"), 0o644))

	result, err := content.Invoke(f.ctx, proto.ChannelReadFile, target)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "again", *result)
}

func TestRecentDocuments(t *testing.T) {
	dialogs := &fakeDialogs{}
	session := NewSession()
	cfg := DefaultConfig()
	cfg.RecentSize = 2
	d, err := NewDispatcher(session, dialogs, nil, cfg)
	require.NoError(t, err)

	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(name), 0o644))
		_, err := d.readFile(context.Background(), []string{p})
		require.NoError(t, err)
		paths = append(paths, p)
	}

	assert.Equal(t, []string{paths[2], paths[1]}, d.Recent())

	err = d.OpenRecent(context.Background(), paths[0])
	assert.True(t, errors.Is(err, apierrors.ErrProtocol), "evicted path is not recent")

	err = d.OpenRecent(context.Background(), paths[1])
	assert.True(t, errors.Is(err, apierrors.ErrUnavailable), "recent but no window")
}

func TestNormalizeAccelerator(t *testing.T) {
	assert.Equal(t, "CmdOrCtrl+Shift+S", NormalizeAccelerator("shift+ctrl+s"))
	assert.Equal(t, "CmdOrCtrl+Shift+S", NormalizeAccelerator("Command+Shift+S"))
	assert.Equal(t, "CmdOrCtrl+,", NormalizeAccelerator("cmdorctrl+,"))
	assert.Equal(t, "CmdOrCtrl+PLUS", NormalizeAccelerator("Ctrl++"))
	assert.Equal(t, "CmdOrCtrl+Alt+I", NormalizeAccelerator("Alt+Command+I"))
}

func TestMenuLayout(t *testing.T) {
	f := newFixture(t)
	menu := f.host.Menu()

	ids := make(map[string]bool)
	accels := make(map[string]string)
	for _, item := range menu {
		assert.False(t, ids[item.ID], "duplicate id %s", item.ID)
		ids[item.ID] = true
		if item.Accelerator != "" {
			norm := NormalizeAccelerator(item.Accelerator)
			assert.Empty(t, accels[norm], "accelerator %s bound twice", norm)
			accels[norm] = item.ID
		}
	}
	for _, id := range []string{ItemNew, ItemOpen, ItemSave, ItemSaveAs, ItemExport, ItemQuit, ItemHelp, ItemShortcuts, ItemPreferences} {
		assert.True(t, ids[id], "missing %s", id)
	}
	assert.Equal(t, ItemSaveAs, accels["CmdOrCtrl+Shift+S"])
}

func TestReadFileRejectsNonUTF8(t *testing.T) {
	f := newFixture(t)
	content, _ := f.connect(t)

	target := filepath.Join(t.TempDir(), "latin1.txt")
	require.NoError(t, os.WriteFile(target, []byte("caf\xe9 na\xefve"), 0o644))

	result, err := content.Invoke(f.ctx, proto.ChannelReadFile, target)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, apierrors.ErrIO))
	assert.Equal(t, "not_text", apierrors.FromError(err).Code)
	assert.Empty(t, f.host.Recent())
}

func TestSaveFileRejectsNonUTF8Content(t *testing.T) {
	f := newFixture(t)
	content, _ := f.connect(t)

	target := filepath.Join(t.TempDir(), "out.txt")
	f.dialogs.save = dialog.Chosen(target)

	_, err := content.Invoke(f.ctx, proto.ChannelSaveFile, "caf\xe9")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierrors.ErrProtocol))
	assert.NoFileExists(t, target)
	assert.Empty(t, f.dialogs.saveOpts)
}
