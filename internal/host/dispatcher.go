// Package host implements the privileged side of the bridge: the application
// menu, file dialogs and the file I/O requested by the content process.
package host

import (
	"context"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru"
	"github.com/nkkko/textai/internal/dialog"
	apierrors "github.com/nkkko/textai/internal/errors"
	"github.com/nkkko/textai/internal/metrics"
	"github.com/nkkko/textai/pkg/proto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config contains dispatcher configuration
type Config struct {
	// Save dialog default when the content side sends none
	DefaultSaveName string

	// Number of recent documents to remember
	RecentSize int

	// Mode for files written by save-file
	FileMode os.FileMode
}

// DefaultConfig returns a default dispatcher configuration
func DefaultConfig() Config {
	return Config{
		DefaultSaveName: "document.txt",
		RecentSize:      10,
		FileMode:        0o644,
	}
}

// Dispatcher turns menu actions into bridge notifications or privileged
// actions, and answers save-file and read-file. It holds no document state.
type Dispatcher struct {
	config  Config
	session *Session
	dialogs dialog.Dialogs
	quit    func()
	menu    []MenuItem
	byID    map[string]MenuItem
	byAccel map[string]MenuItem
	recent  *lru.Cache
	logger  zerolog.Logger
}

// NewDispatcher creates a dispatcher and registers its request handlers on
// the session. quit is called by the Quit menu item.
func NewDispatcher(session *Session, dialogs dialog.Dialogs, quit func(), config ...Config) (*Dispatcher, error) {
	cfg := DefaultConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.DefaultSaveName == "" {
		cfg.DefaultSaveName = DefaultConfig().DefaultSaveName
	}
	if cfg.RecentSize <= 0 {
		cfg.RecentSize = DefaultConfig().RecentSize
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = DefaultConfig().FileMode
	}
	if quit == nil {
		quit = func() {}
	}

	recent, err := lru.New(cfg.RecentSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create recent documents cache: %w", err)
	}

	d := &Dispatcher{
		config:  cfg,
		session: session,
		dialogs: dialogs,
		quit:    quit,
		menu:    defaultMenu(),
		byID:    make(map[string]MenuItem),
		byAccel: make(map[string]MenuItem),
		recent:  recent,
		logger:  log.With().Str("component", "dispatcher").Logger(),
	}
	for _, item := range d.menu {
		d.byID[item.ID] = item
		if item.Accelerator != "" {
			d.byAccel[NormalizeAccelerator(item.Accelerator)] = item
		}
	}

	if err := session.Handle(proto.ChannelSaveFile, d.saveFile); err != nil {
		return nil, err
	}
	if err := session.Handle(proto.ChannelReadFile, d.readFile); err != nil {
		return nil, err
	}

	return d, nil
}

// Menu returns the menu items in display order
func (d *Dispatcher) Menu() []MenuItem {
	out := make([]MenuItem, len(d.menu))
	copy(out, d.menu)
	return out
}

// Trigger runs the menu item with the given ID
func (d *Dispatcher) Trigger(ctx context.Context, itemID string) error {
	item, ok := d.byID[itemID]
	if !ok {
		return apierrors.ProtocolError("unknown_menu_item", fmt.Sprintf("no menu item %q", itemID))
	}
	return d.run(ctx, item)
}

// TriggerAccelerator runs the menu item bound to a keyboard shortcut
func (d *Dispatcher) TriggerAccelerator(ctx context.Context, accel string) error {
	item, ok := d.byAccel[NormalizeAccelerator(accel)]
	if !ok {
		return apierrors.ProtocolError("unknown_accelerator", fmt.Sprintf("no menu item bound to %q", accel))
	}
	return d.run(ctx, item)
}

func (d *Dispatcher) run(ctx context.Context, item MenuItem) error {
	metrics.GetMetrics().HostMenuActionsTotal.WithLabelValues(item.ID).Inc()
	d.logger.Debug().Str("item", item.ID).Msg("Menu action")

	switch item.kind {
	case kindQuit:
		d.logger.Info().Msg("Quit requested")
		d.quit()
		return nil
	case kindOpen:
		return d.open(ctx)
	default:
		return d.session.Notify(ctx, item.channel, item.args...)
	}
}

// open shows the open dialog and forwards the chosen path. Cancel sends
// nothing.
func (d *Dispatcher) open(ctx context.Context) error {
	if d.session.Window() == nil {
		d.logger.Warn().Msg("No window attached, open ignored")
		return apierrors.UnavailableError("no_window", "no window is attached").WithChannel(proto.ChannelOpenFile)
	}

	result, err := d.dialogs.ShowOpenDialog(ctx, dialog.Options{Filters: dialog.OpenFilters})
	if err != nil {
		metrics.GetMetrics().HostDialogsTotal.WithLabelValues("open", "error").Inc()
		return apierrors.InternalError("dialog_failed", err.Error()).WithCause(err)
	}
	if result.Canceled || result.FilePath() == "" {
		metrics.GetMetrics().HostDialogsTotal.WithLabelValues("open", "canceled").Inc()
		return nil
	}
	metrics.GetMetrics().HostDialogsTotal.WithLabelValues("open", "confirmed").Inc()

	return d.session.Notify(ctx, proto.ChannelOpenFile, result.FilePath())
}

// Recent lists recently read or written paths, most recent first
func (d *Dispatcher) Recent() []string {
	keys := d.recent.Keys()
	out := make([]string, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		out = append(out, keys[i].(string))
	}
	return out
}

// OpenRecent asks the window to load a path from the recent list
func (d *Dispatcher) OpenRecent(ctx context.Context, path string) error {
	if !d.recent.Contains(path) {
		return apierrors.ProtocolError("not_recent", fmt.Sprintf("%s is not a recent document", path))
	}
	metrics.GetMetrics().HostMenuActionsTotal.WithLabelValues("open-recent").Inc()
	return d.session.Notify(ctx, proto.ChannelOpenFile, path)
}

// saveFile answers save-file: args are the content and an optional default
// path. A cancelled dialog yields a nil result and no write.
func (d *Dispatcher) saveFile(ctx context.Context, args []string) (*string, error) {
	content := args[0]
	defaultPath := d.config.DefaultSaveName
	if len(args) > 1 && args[1] != "" {
		defaultPath = args[1]
	}

	result, err := d.dialogs.ShowSaveDialog(ctx, dialog.Options{
		DefaultPath: defaultPath,
		Filters:     dialog.SaveFilters,
	})
	if err != nil {
		metrics.GetMetrics().HostDialogsTotal.WithLabelValues("save", "error").Inc()
		return nil, apierrors.InternalError("dialog_failed", err.Error()).WithCause(err)
	}
	if result.Canceled || result.FilePath() == "" {
		metrics.GetMetrics().HostDialogsTotal.WithLabelValues("save", "canceled").Inc()
		d.logger.Debug().Msg("Save dialog cancelled")
		return nil, nil
	}
	metrics.GetMetrics().HostDialogsTotal.WithLabelValues("save", "confirmed").Inc()

	path := result.FilePath()
	start := time.Now()
	err = os.WriteFile(path, []byte(content), d.config.FileMode)
	d.observeFileOp("write", start, err)
	if err != nil {
		d.logger.Error().Err(err).Str("path", path).Msg("Failed to write file")
		return nil, apierrors.IOError("write_failed", err.Error()).WithCause(err)
	}

	d.recent.Add(path, struct{}{})
	d.logger.Info().Str("path", path).Int("bytes", len(content)).Msg("File saved")
	return proto.String(path), nil
}

// readFile answers read-file with the file's text
func (d *Dispatcher) readFile(_ context.Context, args []string) (*string, error) {
	path := args[0]

	start := time.Now()
	data, err := os.ReadFile(path)
	if err != nil {
		d.observeFileOp("read", start, err)
		d.logger.Warn().Err(err).Str("path", path).Msg("Failed to read file")
		return nil, apierrors.IOError("read_failed", err.Error()).WithCause(err)
	}

	// Only text crosses the bridge; altered bytes would be worse than no read
	if !utf8.Valid(data) {
		err := apierrors.IOError("not_text", fmt.Sprintf("%s is not UTF-8 text", path))
		d.observeFileOp("read", start, err)
		d.logger.Warn().Str("path", path).Msg("Refusing to read non-UTF-8 file")
		return nil, err
	}
	d.observeFileOp("read", start, nil)

	d.recent.Add(path, struct{}{})
	return proto.String(string(data)), nil
}

func (d *Dispatcher) observeFileOp(operation string, start time.Time, err error) {
	m := metrics.GetMetrics()
	m.HostFileOperationTime.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	m.HostFileOperations.WithLabelValues(operation, fmt.Sprintf("%t", err == nil)).Inc()
}
