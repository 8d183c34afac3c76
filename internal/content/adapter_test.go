package content

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nkkko/textai/internal/bridge"
	apierrors "github.com/nkkko/textai/internal/errors"
	"github.com/nkkko/textai/internal/router"
	"github.com/nkkko/textai/internal/transport"
	"github.com/nkkko/textai/pkg/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// calls records which callbacks fired and with what
type calls struct {
	mu     sync.Mutex
	fired  []string
	args   []string
	signal chan struct{}
}

func newCalls() *calls {
	return &calls{signal: make(chan struct{}, 32)}
}

func (c *calls) record(name, arg string) {
	c.mu.Lock()
	c.fired = append(c.fired, name)
	c.args = append(c.args, arg)
	c.mu.Unlock()
	c.signal <- struct{}{}
}

func (c *calls) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.signal:
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for callback")
	}
}

func (c *calls) snapshot() ([]string, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.fired...), append([]string(nil), c.args...)
}

func (c *calls) callbacks(prefix string) Callbacks {
	return Callbacks{
		OnNewDocument:     func(context.Context) { c.record(prefix+proto.ChannelNewDocument, "") },
		OnOpenFile:        func(_ context.Context, p string) { c.record(prefix+proto.ChannelOpenFile, p) },
		OnSaveDocument:    func(context.Context) { c.record(prefix+proto.ChannelSaveDocument, "") },
		OnSaveDocumentAs:  func(context.Context) { c.record(prefix+proto.ChannelSaveDocumentAs, "") },
		OnExportDocument:  func(context.Context) { c.record(prefix+proto.ChannelExportDocument, "") },
		OnAIAction:        func(_ context.Context, a proto.AIAction) { c.record(prefix+proto.ChannelAIAction, string(a)) },
		OnOpenPreferences: func(context.Context) { c.record(prefix+proto.ChannelOpenPreferences, "") },
		OnShowHelp:        func(context.Context) { c.record(prefix+proto.ChannelShowHelp, "") },
		OnShowShortcuts:   func(context.Context) { c.record(prefix+proto.ChannelShowShortcuts, "") },
	}
}

// bridged wires a host endpoint to a connected adapter through the router
type bridged struct {
	host    *bridge.Endpoint
	adapter *Adapter
	router  *router.Router
}

func newBridged(t *testing.T) *bridged {
	t.Helper()

	hostSide, contentSide := transport.Pipe(16)
	host := bridge.NewEndpoint(bridge.RoleHost, hostSide)
	content := bridge.NewEndpoint(bridge.RoleContent, contentSide)
	r := router.NewRouter()

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = host.Run(ctx) }()
	go func() { _ = content.Run(ctx) }()
	go func() { _ = r.Start(ctx, content.Inbound()) }()
	t.Cleanup(func() {
		cancel()
		_ = host.Close()
		_ = r.Shutdown(context.Background())
	})

	adapter := NewAdapter(r, nil, Config{DownloadDir: t.TempDir()})
	require.NoError(t, adapter.Connect(content))

	return &bridged{host: host, adapter: adapter, router: r}
}

// panicRequester fails the test if any privileged call is made
type panicRequester struct{ t *testing.T }

func (p panicRequester) Invoke(context.Context, string, ...string) (*string, error) {
	p.t.Fatal("privileged API called")
	return nil, nil
}

// connected returns an adapter connected to a requester that must not be used
func connected(t *testing.T, r *router.Router) *Adapter {
	t.Helper()
	adapter := NewAdapter(r, nil, Config{DownloadDir: t.TempDir()})
	require.NoError(t, adapter.Connect(panicRequester{t}))
	return adapter
}

func TestSetupThenCleanupLeavesNoListeners(t *testing.T) {
	r := router.NewRouter()
	adapter := connected(t, r)

	adapter.SetupEventListeners(newCalls().callbacks(""))
	assert.Equal(t, len(bridge.Notifications()), adapter.ListenerCount())

	adapter.CleanupEventListeners()
	assert.Equal(t, 0, adapter.ListenerCount())
	assert.Equal(t, 0, r.ListenerTotal())

	adapter.CleanupEventListeners()
	assert.Equal(t, 0, adapter.ListenerCount())
}

func TestCleanupOnFreshAdapterIsSafe(t *testing.T) {
	adapter := NewAdapter(router.NewRouter(), nil, Config{DownloadDir: t.TempDir()})
	assert.NotPanics(t, adapter.CleanupEventListeners)
	assert.Equal(t, 0, adapter.ListenerCount())
}

func TestCleanupRemovesForeignListeners(t *testing.T) {
	r := router.NewRouter()
	adapter := connected(t, r)

	r.Subscribe(func(context.Context, *proto.Envelope) {}, proto.ChannelShowHelp, proto.ChannelOpenFile)
	require.Equal(t, 2, adapter.ListenerCount())

	adapter.CleanupEventListeners()
	assert.Equal(t, 0, adapter.ListenerCount())
}

func TestSetupBindsOnlyProvidedCallbacks(t *testing.T) {
	r := router.NewRouter()
	adapter := connected(t, r)

	adapter.SetupEventListeners(Callbacks{
		OnNewDocument: func(context.Context) {},
		OnShowHelp:    func(context.Context) {},
	})

	assert.Equal(t, 2, adapter.ListenerCount())
	assert.Equal(t, 1, r.ListenerCount(proto.ChannelNewDocument))
	assert.Equal(t, 0, r.ListenerCount(proto.ChannelAIAction))

	// An empty callback set binds nothing
	adapter.CleanupEventListeners()
	adapter.SetupEventListeners(Callbacks{})
	assert.Equal(t, 0, adapter.ListenerCount())
}

func TestAIActionFiresOnlyItsCallback(t *testing.T) {
	b := newBridged(t)
	c := newCalls()
	b.adapter.SetupEventListeners(c.callbacks(""))

	require.NoError(t, b.host.Notify(context.Background(), proto.ChannelAIAction, "improve"))
	c.wait(t)
	time.Sleep(30 * time.Millisecond)

	fired, args := c.snapshot()
	assert.Equal(t, []string{proto.ChannelAIAction}, fired)
	assert.Equal(t, []string{"improve"}, args)
}

func TestUnknownAIActionIsDelivered(t *testing.T) {
	b := newBridged(t)
	c := newCalls()
	b.adapter.SetupEventListeners(c.callbacks(""))

	require.NoError(t, b.host.Notify(context.Background(), proto.ChannelAIAction, "rhyme"))
	c.wait(t)

	_, args := c.snapshot()
	assert.Equal(t, []string{"rhyme"}, args)
}

func TestUnsubscribedChannelIsNoop(t *testing.T) {
	b := newBridged(t)
	c := newCalls()
	b.adapter.SetupEventListeners(Callbacks{
		OnOpenFile: func(_ context.Context, p string) { c.record(proto.ChannelOpenFile, p) },
	})

	require.NoError(t, b.host.Notify(context.Background(), proto.ChannelShowHelp))
	require.NoError(t, b.host.Notify(context.Background(), proto.ChannelOpenFile, "/tmp/x.md"))
	c.wait(t)

	fired, args := c.snapshot()
	assert.Equal(t, []string{proto.ChannelOpenFile}, fired)
	assert.Equal(t, []string{"/tmp/x.md"}, args)
}

func TestResetupAfterCleanupFiresOnlyNewCallbacks(t *testing.T) {
	b := newBridged(t)
	c := newCalls()

	b.adapter.SetupEventListeners(c.callbacks("old:"))
	b.adapter.CleanupEventListeners()
	b.adapter.SetupEventListeners(c.callbacks("new:"))

	require.NoError(t, b.host.Notify(context.Background(), proto.ChannelNewDocument))
	require.NoError(t, b.host.Notify(context.Background(), proto.ChannelAIAction, "translate"))
	c.wait(t)
	c.wait(t)
	time.Sleep(30 * time.Millisecond)

	fired, _ := c.snapshot()
	assert.Equal(t, []string{"new:" + proto.ChannelNewDocument, "new:" + proto.ChannelAIAction}, fired)
}

func TestResetupWithoutCleanupReplacesBindings(t *testing.T) {
	b := newBridged(t)
	c := newCalls()

	b.adapter.SetupEventListeners(c.callbacks("old:"))
	b.adapter.SetupEventListeners(c.callbacks("new:"))
	assert.Equal(t, len(bridge.Notifications()), b.adapter.ListenerCount())

	require.NoError(t, b.host.Notify(context.Background(), proto.ChannelShowShortcuts))
	c.wait(t)
	time.Sleep(30 * time.Millisecond)

	fired, _ := c.snapshot()
	assert.Equal(t, []string{"new:" + proto.ChannelShowShortcuts}, fired)
}

func TestSaveAndReadThroughHost(t *testing.T) {
	b := newBridged(t)
	target := filepath.Join(t.TempDir(), "out.txt")

	require.NoError(t, b.host.Handle(proto.ChannelSaveFile, func(_ context.Context, args []string) (*string, error) {
		assert.Equal(t, []string{"body", "draft.txt"}, args)
		return proto.String(target), os.WriteFile(target, []byte(args[0]), 0o644)
	}))
	require.NoError(t, b.host.Handle(proto.ChannelReadFile, func(_ context.Context, args []string) (*string, error) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, apierrors.IOError("read_failed", err.Error())
		}
		return proto.String(string(data)), nil
	}))

	saved, err := b.adapter.SaveFile(context.Background(), "body", "draft.txt")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, target, *saved)

	text, err := b.adapter.ReadFile(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, "body", text)

	_, err = b.adapter.ReadFile(context.Background(), target+".missing")
	assert.True(t, errors.Is(err, apierrors.ErrIO))
}

func TestSaveWithoutDefaultSendsOneArgument(t *testing.T) {
	b := newBridged(t)
	require.NoError(t, b.host.Handle(proto.ChannelSaveFile, func(_ context.Context, args []string) (*string, error) {
		assert.Len(t, args, 1)
		return nil, nil
	}))

	saved, err := b.adapter.SaveFile(context.Background(), "body", "")
	require.NoError(t, err)
	assert.Nil(t, saved)
}

func TestNoHostSaveFallsBackToDownload(t *testing.T) {
	dir := t.TempDir()
	adapter := NewAdapter(router.NewRouter(), nil, Config{DownloadDir: dir})
	adapter.now = func() time.Time { return time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC) }

	assert.False(t, adapter.IsHostAvailable())
	assert.Equal(t, NotConnected, adapter.State())

	var result *string
	var err error
	assert.NotPanics(t, func() {
		result, err = adapter.SaveFile(context.Background(), "offline text", "")
	})
	require.NoError(t, err)
	assert.Nil(t, result)

	data, err := os.ReadFile(filepath.Join(dir, "document-2024-03-09.txt"))
	require.NoError(t, err)
	assert.Equal(t, "offline text", string(data))

	// A second save keeps the first download
	_, err = adapter.SaveFile(context.Background(), "second", "")
	require.NoError(t, err)
	data, err = os.ReadFile(filepath.Join(dir, "document-2024-03-09 (1).txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestNoHostSaveNeverCallsPrivilegedAPI(t *testing.T) {
	adapter := NewAdapter(router.NewRouter(), &recordingDownloader{}, Config{})

	result, err := adapter.SaveFile(context.Background(), "text", "/home/me/notes.md")
	require.NoError(t, err)
	assert.Nil(t, result)

	dl := adapter.downloader.(*recordingDownloader)
	assert.Equal(t, []string{"notes.md"}, dl.names)
}

func TestNoHostSaveReportsDownloadFailure(t *testing.T) {
	dl := &recordingDownloader{err: errors.New("disk full")}
	adapter := NewAdapter(router.NewRouter(), dl, Config{})

	result, err := adapter.SaveFile(context.Background(), "text", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDownloadFailed))
	assert.Contains(t, err.Error(), "disk full")
	assert.Nil(t, result)
	assert.Len(t, dl.names, 1)
}

func TestNoHostReadIsUnsupported(t *testing.T) {
	adapter := NewAdapter(router.NewRouter(), nil, Config{DownloadDir: t.TempDir()})

	_, err := adapter.ReadFile(context.Background(), "/etc/hosts")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierrors.ErrUnsupported))
}

func TestConnectIsAcceptedOnce(t *testing.T) {
	adapter := NewAdapter(router.NewRouter(), nil, Config{DownloadDir: t.TempDir()})

	require.NoError(t, adapter.Connect(panicRequester{t}))
	assert.True(t, adapter.IsHostAvailable())
	assert.Equal(t, "connected", adapter.State().String())

	err := adapter.Connect(panicRequester{t})
	assert.True(t, errors.Is(err, apierrors.ErrProtocol))
	assert.True(t, adapter.IsHostAvailable())

	assert.Error(t, NewAdapter(router.NewRouter(), nil, Config{}).Connect(nil))
}

func TestListenersNeedAHost(t *testing.T) {
	r := router.NewRouter()
	adapter := NewAdapter(r, nil, Config{DownloadDir: t.TempDir()})

	adapter.SetupEventListeners(Callbacks{OnNewDocument: func(context.Context) {}})
	assert.Equal(t, NotConnected, adapter.State())
	assert.Equal(t, 0, r.ListenerTotal())

	// Cleanup without a host leaves other listeners alone
	r.Subscribe(func(context.Context, *proto.Envelope) {}, proto.ChannelShowHelp)
	adapter.CleanupEventListeners()
	assert.Equal(t, NotConnected, adapter.State())
	assert.Equal(t, 1, r.ListenerTotal())
}

func TestStateTransitions(t *testing.T) {
	r := router.NewRouter()
	adapter := NewAdapter(r, nil, Config{DownloadDir: t.TempDir()})
	assert.Equal(t, "not_connected", adapter.State().String())

	require.NoError(t, adapter.Connect(panicRequester{t}))
	assert.Equal(t, Connected, adapter.State())

	// An empty callback set binds nothing and changes nothing
	adapter.SetupEventListeners(Callbacks{})
	assert.Equal(t, Connected, adapter.State())

	adapter.SetupEventListeners(Callbacks{OnShowHelp: func(context.Context) {}})
	assert.Equal(t, Subscribed, adapter.State())
	assert.Equal(t, "subscribed", adapter.State().String())

	adapter.CleanupEventListeners()
	assert.Equal(t, Unsubscribed, adapter.State())
	assert.Equal(t, "unsubscribed", adapter.State().String())

	adapter.CleanupEventListeners()
	assert.Equal(t, Unsubscribed, adapter.State())

	adapter.SetupEventListeners(Callbacks{OnShowHelp: func(context.Context) {}})
	assert.Equal(t, Subscribed, adapter.State())

	// Listener changes never revert the connection
	assert.True(t, adapter.IsHostAvailable())
	err := adapter.Connect(panicRequester{t})
	assert.True(t, errors.Is(err, apierrors.ErrProtocol))
}

func TestDownloadName(t *testing.T) {
	now := time.Date(2025, 12, 1, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "document-2025-12-01.txt", DownloadName("", now))
	assert.Equal(t, "report.md", DownloadName("/some/dir/report.md", now))
	assert.Equal(t, "document-2025-12-01.txt", DownloadName("/", now))
}

type recordingDownloader struct {
	names []string
	err   error
}

func (r *recordingDownloader) Download(_ context.Context, name string, _ string) error {
	r.names = append(r.names, name)
	return r.err
}
