package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apierrors "github.com/nkkko/textai/internal/errors"
	"github.com/nkkko/textai/internal/transport"
	"github.com/nkkko/textai/pkg/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	var counter atomic.Int64
	generateID = func() string {
		return fmt.Sprintf("test-envelope-id-%d", counter.Add(1))
	}
}

// pair starts a connected host and content endpoint over an in-memory pipe
func pair(t *testing.T, config ...Config) (*Endpoint, *Endpoint) {
	t.Helper()

	hostSide, contentSide := transport.Pipe(16)
	host := NewEndpoint(RoleHost, hostSide, config...)
	content := NewEndpoint(RoleContent, contentSide, config...)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = host.Run(ctx) }()
	go func() { defer wg.Done(); _ = content.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		_ = host.Close()
		wg.Wait()
	})

	return host, content
}

func receiveNotification(t *testing.T, e *Endpoint) *proto.Envelope {
	t.Helper()
	select {
	case env := <-e.Inbound():
		return env
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for notification")
		return nil
	}
}

func TestNotifyDeliversInOrder(t *testing.T) {
	host, content := pair(t)
	ctx := context.Background()

	require.NoError(t, host.Notify(ctx, proto.ChannelOpenFile, "/tmp/one.txt"))
	require.NoError(t, host.Notify(ctx, proto.ChannelAIAction, "improve"))
	require.NoError(t, host.Notify(ctx, proto.ChannelOpenFile, "/tmp/two.txt"))

	first := receiveNotification(t, content)
	second := receiveNotification(t, content)
	third := receiveNotification(t, content)

	assert.Equal(t, "/tmp/one.txt", first.Arg(0))
	assert.Equal(t, proto.ChannelAIAction, second.Channel)
	assert.Equal(t, "improve", second.Arg(0))
	assert.Equal(t, "/tmp/two.txt", third.Arg(0))
}

func TestNotifyRejectsContractViolations(t *testing.T) {
	host, content := pair(t)
	ctx := context.Background()

	err := host.Notify(ctx, "eval-script", "alert(1)")
	assert.True(t, errors.Is(err, apierrors.ErrProtocol))

	err = host.Notify(ctx, proto.ChannelOpenFile)
	assert.True(t, errors.Is(err, apierrors.ErrProtocol))

	err = host.Notify(ctx, proto.ChannelSaveFile, "text")
	assert.True(t, errors.Is(err, apierrors.ErrProtocol))

	// The content side never sends notifications
	err = content.Notify(ctx, proto.ChannelNewDocument)
	assert.True(t, errors.Is(err, apierrors.ErrProtocol))
	assert.Equal(t, "wrong_side", apierrors.FromError(err).Code)
}

func TestInvokeReturnsResult(t *testing.T) {
	host, content := pair(t)

	require.NoError(t, host.Handle(proto.ChannelReadFile, func(_ context.Context, args []string) (*string, error) {
		return proto.String("contents of " + args[0]), nil
	}))

	result, err := content.Invoke(context.Background(), proto.ChannelReadFile, "/tmp/a.txt")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "contents of /tmp/a.txt", *result)
}

func TestInvokeNullResultIsNotAnError(t *testing.T) {
	host, content := pair(t)

	require.NoError(t, host.Handle(proto.ChannelSaveFile, func(context.Context, []string) (*string, error) {
		return nil, nil
	}))

	result, err := content.Invoke(context.Background(), proto.ChannelSaveFile, "text", "document.txt")
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestInvokeCarriesTypedErrors(t *testing.T) {
	host, content := pair(t)

	require.NoError(t, host.Handle(proto.ChannelReadFile, func(_ context.Context, args []string) (*string, error) {
		return nil, apierrors.IOError("read_failed", "no such file: "+args[0])
	}))

	_, err := content.Invoke(context.Background(), proto.ChannelReadFile, "/missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierrors.ErrIO))

	bridgeErr := apierrors.FromError(err)
	assert.Equal(t, "read_failed", bridgeErr.Code)
	assert.Equal(t, proto.ChannelReadFile, bridgeErr.Channel)
}

func TestInvokeWithoutHandler(t *testing.T) {
	_, content := pair(t)

	_, err := content.Invoke(context.Background(), proto.ChannelReadFile, "/tmp/a.txt")
	assert.True(t, errors.Is(err, apierrors.ErrUnsupported))
}

func TestInvokeRejectsNotificationChannels(t *testing.T) {
	_, content := pair(t)

	_, err := content.Invoke(context.Background(), proto.ChannelNewDocument)
	assert.True(t, errors.Is(err, apierrors.ErrProtocol))
}

func TestHandleOnlyAcceptsRequestChannels(t *testing.T) {
	host, _ := pair(t)

	err := host.Handle(proto.ChannelShowHelp, func(context.Context, []string) (*string, error) { return nil, nil })
	assert.True(t, errors.Is(err, apierrors.ErrProtocol))
}

func TestInvokeHandlerPanicBecomesInternalError(t *testing.T) {
	host, content := pair(t)

	require.NoError(t, host.Handle(proto.ChannelReadFile, func(context.Context, []string) (*string, error) {
		panic("disk on fire")
	}))

	_, err := content.Invoke(context.Background(), proto.ChannelReadFile, "/tmp/a.txt")
	assert.True(t, errors.Is(err, apierrors.ErrInternal))
}

func TestInvokeAbandonedOnContextCancel(t *testing.T) {
	host, content := pair(t)

	release := make(chan struct{})
	require.NoError(t, host.Handle(proto.ChannelSaveFile, func(context.Context, []string) (*string, error) {
		<-release
		return proto.String("/tmp/late.txt"), nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := content.Invoke(ctx, proto.ChannelSaveFile, "text")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	// The late reply arrives after the request was discarded and is dropped
	close(release)
	time.Sleep(20 * time.Millisecond)

	content.pendingMu.Lock()
	defer content.pendingMu.Unlock()
	assert.Empty(t, content.pending)
}

func TestInvokeRequestTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestTimeout = 30 * time.Millisecond
	host, content := pair(t, cfg)

	release := make(chan struct{})
	defer close(release)
	require.NoError(t, host.Handle(proto.ChannelReadFile, func(ctx context.Context, _ []string) (*string, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, nil
	}))

	_, err := content.Invoke(context.Background(), proto.ChannelReadFile, "/tmp/a.txt")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestInvokeFailsWhenHostGoesAway(t *testing.T) {
	host, content := pair(t)

	started := make(chan struct{})
	require.NoError(t, host.Handle(proto.ChannelSaveFile, func(ctx context.Context, _ []string) (*string, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	go func() {
		<-started
		_ = host.Close()
	}()

	_, err := content.Invoke(context.Background(), proto.ChannelSaveFile, "text")
	assert.True(t, errors.Is(err, apierrors.ErrUnavailable))
}

func TestHostRequestsAreSerialized(t *testing.T) {
	host, content := pair(t)

	var running, maxRunning atomic.Int32
	require.NoError(t, host.Handle(proto.ChannelReadFile, func(_ context.Context, args []string) (*string, error) {
		n := running.Add(1)
		for {
			m := maxRunning.Load()
			if n <= m || maxRunning.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return proto.String(args[0]), nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("/tmp/%d", i)
			result, err := content.Invoke(context.Background(), proto.ChannelReadFile, path)
			assert.NoError(t, err)
			if assert.NotNil(t, result) {
				assert.Equal(t, path, *result)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxRunning.Load())
}

func TestHostRejectsInboundNotifications(t *testing.T) {
	hostSide, contentSide := transport.Pipe(4)
	host := NewEndpoint(RoleHost, hostSide)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = host.Run(ctx) }()

	// A rogue peer sends a malformed request and a notification upstream
	require.NoError(t, contentSide.Send(ctx, proto.NewRequest("r1", proto.ChannelReadFile)))
	require.NoError(t, contentSide.Send(ctx, proto.NewNotification("n1", proto.ChannelNewDocument)))

	select {
	case resp := <-contentSide.Receive():
		assert.Equal(t, "r1", resp.Id)
		assert.Equal(t, proto.MessageKind_RESPONSE, resp.Kind)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "protocol", resp.Error.Type)
		assert.Equal(t, "bad_arity", resp.Error.Code)
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for rejection reply")
	}

	select {
	case env := <-host.Inbound():
		t.Fatalf("Host should not queue notifications, got %s", env.Channel)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestRunStopsWhenTransportCloses(t *testing.T) {
	a, _ := transport.Pipe(1)
	e := NewEndpoint(RoleContent, a)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	require.NoError(t, e.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after close")
	}
}

func TestRunStopsWhileWorkerBusy(t *testing.T) {
	hostSide, contentSide := transport.Pipe(4)
	host := NewEndpoint(RoleHost, hostSide)

	started := make(chan struct{}, 2)
	var cancelled atomic.Int32
	require.NoError(t, host.Handle(proto.ChannelSaveFile, func(ctx context.Context, _ []string) (*string, error) {
		started <- struct{}{}
		<-ctx.Done()
		cancelled.Add(1)
		return nil, ctx.Err()
	}))

	done := make(chan error, 1)
	go func() { done <- host.Run(context.Background()) }()

	ctx := context.Background()
	require.NoError(t, contentSide.Send(ctx, proto.NewRequest("r1", proto.ChannelSaveFile, "first")))
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("Handler was not started")
	}

	// The only worker is busy; a second request waits behind it
	require.NoError(t, contentSide.Send(ctx, proto.NewRequest("r2", proto.ChannelSaveFile, "second")))
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, contentSide.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the link closed")
	}

	assert.Equal(t, int32(1), cancelled.Load())
	assert.Len(t, started, 0, "queued request must not start after shutdown")
}
