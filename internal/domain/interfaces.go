// Package domain holds the interfaces shared between the engine and the
// components it wires together.
package domain

import (
	"context"

	"github.com/nkkko/textai/pkg/proto"
)

// EventRouter delivers inbound host notifications to content-side listeners
type EventRouter interface {
	// Start begins processing notifications from the provided stream
	Start(ctx context.Context, events <-chan *proto.Envelope) error

	// Shutdown drops every subscription and stops dispatch
	Shutdown(ctx context.Context) error

	// RemoveAllListeners unbinds whoever owns the channel
	RemoveAllListeners(channel string)

	// ListenerCount reports how many listeners a channel has (zero or one)
	ListenerCount(channel string) int
}

// APIEngine defines the interface for the host HTTP surface
type APIEngine interface {
	// Start runs the server until ctx is done
	Start(ctx context.Context) error

	// Shutdown stops the server
	Shutdown(ctx context.Context) error
}

// MenuItem is the JSON form of one menu entry
type MenuItem struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Menu        string `json:"menu"`
	Accelerator string `json:"accelerator,omitempty"`
}

// HostService is what the HTTP surface needs from the host process
type HostService interface {
	// Serve binds a connected content endpoint as the window until it closes.
	// It fails with an unavailable error when a window is already open.
	Serve(ctx context.Context, conn Conn) error

	// Ready reports whether a window is attached
	Ready() bool

	// Menu lists the menu items in display order
	Menu() []MenuItem

	// Trigger runs a menu item by id
	Trigger(ctx context.Context, itemID string) error

	// TriggerAccelerator runs the menu item bound to a key combination
	TriggerAccelerator(ctx context.Context, accel string) error

	// OpenRecent re-opens a document from the recent list
	OpenRecent(ctx context.Context, path string) error

	// Recent lists recently used documents, most recent first
	Recent() []string
}

// Conn is a message-framed connection, satisfied by both the gorilla and
// the fiber websocket connections
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}
