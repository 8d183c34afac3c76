// Package transport carries bridge envelopes between the two processes.
//
// A Transport is a framed, ordered, duplex link. Implementations encode every
// envelope to JSON on the way out and decode on the way in, so the peers never
// share memory even when they live in one process.
package transport

import (
	"context"
	"encoding/json"
	"fmt"

	apierrors "github.com/nkkko/textai/internal/errors"
	"github.com/nkkko/textai/pkg/proto"
)

// Transport is one side of a bridge link
type Transport interface {
	// Send writes one envelope. It fails once the link is closed.
	Send(ctx context.Context, env *proto.Envelope) error

	// Receive returns inbound envelopes in arrival order. The channel is
	// never closed; watch Done to learn the link went away.
	Receive() <-chan *proto.Envelope

	// Done is closed when the link is closed by either side
	Done() <-chan struct{}

	// Close tears the link down. Safe to call more than once.
	Close() error
}

// DefaultBufferSize is the inbound queue length used when none is given
const DefaultBufferSize = 64

// Encode serializes an envelope into a single frame
func Encode(env *proto.Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

// Decode parses a single frame into an envelope
func Decode(data []byte) (*proto.Envelope, error) {
	var env proto.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return &env, nil
}

func closedError() error {
	return apierrors.UnavailableError("transport_closed", "bridge transport is closed")
}
