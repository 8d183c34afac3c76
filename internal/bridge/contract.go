// Package bridge defines the closed channel contract between the host and
// content processes and the endpoint that speaks it over a transport.
//
// Only the channels listed in this file may cross the boundary. Every payload
// is a list of strings; there is no way to pass code or object references.
package bridge

import (
	"fmt"
	"unicode/utf8"

	apierrors "github.com/nkkko/textai/internal/errors"
	"github.com/nkkko/textai/pkg/proto"
)

// Direction of a channel
type Direction int

const (
	// HostToContent channels are one-way notifications sent by the host
	HostToContent Direction = iota + 1

	// ContentToHost channels are request/response calls made by the content side
	ContentToHost
)

// String returns a short label for logs and metrics
func (d Direction) String() string {
	switch d {
	case HostToContent:
		return "host_to_content"
	case ContentToHost:
		return "content_to_host"
	default:
		return "unknown"
	}
}

// ChannelSpec describes one named path across the bridge
type ChannelSpec struct {
	Name      string
	Direction Direction
	MinArgs   int
	MaxArgs   int
}

// Kind returns the message kind a sender must use on this channel
func (c ChannelSpec) Kind() proto.MessageKind {
	if c.Direction == ContentToHost {
		return proto.MessageKind_REQUEST
	}
	return proto.MessageKind_NOTIFY
}

var channels = []ChannelSpec{
	{Name: proto.ChannelNewDocument, Direction: HostToContent},
	{Name: proto.ChannelOpenFile, Direction: HostToContent, MinArgs: 1, MaxArgs: 1},
	{Name: proto.ChannelSaveDocument, Direction: HostToContent},
	{Name: proto.ChannelSaveDocumentAs, Direction: HostToContent},
	{Name: proto.ChannelExportDocument, Direction: HostToContent},
	{Name: proto.ChannelAIAction, Direction: HostToContent, MinArgs: 1, MaxArgs: 1},
	{Name: proto.ChannelOpenPreferences, Direction: HostToContent},
	{Name: proto.ChannelShowHelp, Direction: HostToContent},
	{Name: proto.ChannelShowShortcuts, Direction: HostToContent},
	{Name: proto.ChannelSaveFile, Direction: ContentToHost, MinArgs: 1, MaxArgs: 2},
	{Name: proto.ChannelReadFile, Direction: ContentToHost, MinArgs: 1, MaxArgs: 1},
}

var channelIndex = func() map[string]ChannelSpec {
	index := make(map[string]ChannelSpec, len(channels))
	for _, spec := range channels {
		if _, dup := index[spec.Name]; dup {
			panic(fmt.Sprintf("bridge: duplicate channel %q", spec.Name))
		}
		index[spec.Name] = spec
	}
	return index
}()

// Lookup returns the contract for a channel name
func Lookup(name string) (ChannelSpec, bool) {
	spec, ok := channelIndex[name]
	return spec, ok
}

// Channels returns every channel in contract order
func Channels() []ChannelSpec {
	out := make([]ChannelSpec, len(channels))
	copy(out, channels)
	return out
}

// Notifications returns the names of all host->content channels
func Notifications() []string {
	return namesFor(HostToContent)
}

// Requests returns the names of all content->host channels
func Requests() []string {
	return namesFor(ContentToHost)
}

func namesFor(dir Direction) []string {
	var names []string
	for _, spec := range channels {
		if spec.Direction == dir {
			names = append(names, spec.Name)
		}
	}
	return names
}

// Validate checks an outgoing or incoming envelope against the contract.
// Responses are checked for a known request channel only; their payload is
// a nullable result.
func Validate(env *proto.Envelope) error {
	if env == nil {
		return apierrors.ProtocolError("nil_envelope", "envelope is nil")
	}

	spec, ok := Lookup(env.Channel)
	if !ok {
		return apierrors.ProtocolError("unknown_channel", fmt.Sprintf("channel %q is not part of the bridge", env.Channel)).
			WithChannel(env.Channel)
	}

	switch env.Kind {
	case proto.MessageKind_NOTIFY, proto.MessageKind_REQUEST:
		if env.Kind != spec.Kind() {
			return apierrors.ProtocolError("wrong_direction",
				fmt.Sprintf("%s is not allowed on a %s channel", env.Kind, spec.Direction)).
				WithChannel(env.Channel)
		}
		if n := len(env.Args); n < spec.MinArgs || n > spec.MaxArgs {
			return apierrors.ProtocolError("bad_arity",
				fmt.Sprintf("expected %d..%d arguments, got %d", spec.MinArgs, spec.MaxArgs, n)).
				WithChannel(env.Channel)
		}
	case proto.MessageKind_RESPONSE:
		if spec.Direction != ContentToHost {
			return apierrors.ProtocolError("wrong_direction", "responses only exist on request channels").
				WithChannel(env.Channel)
		}
	default:
		return apierrors.ProtocolError("unknown_kind", fmt.Sprintf("unknown message kind %d", env.Kind)).
			WithChannel(env.Channel)
	}

	if env.Id == "" {
		return apierrors.ProtocolError("missing_id", "envelope has no id").WithChannel(env.Channel)
	}

	// Payloads are text; the JSON wire form would silently replace invalid bytes
	for i, arg := range env.Args {
		if !utf8.ValidString(arg) {
			return apierrors.ProtocolError("invalid_utf8", fmt.Sprintf("argument %d is not valid UTF-8", i)).
				WithChannel(env.Channel)
		}
	}
	if env.Result != nil && !utf8.ValidString(*env.Result) {
		return apierrors.ProtocolError("invalid_utf8", "result is not valid UTF-8").WithChannel(env.Channel)
	}

	return nil
}
