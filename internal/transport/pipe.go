package transport

import (
	"context"
	"sync"

	"github.com/nkkko/textai/pkg/proto"
)

// pipeLink is the state shared by both ends of a pipe
type pipeLink struct {
	done      chan struct{}
	closeOnce sync.Once
}

type pipeEnd struct {
	link *pipeLink
	in   chan *proto.Envelope
	peer *pipeEnd
}

// Pipe returns two connected in-memory transports. Closing either end
// closes the link for both.
func Pipe(bufferSize int) (Transport, Transport) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	link := &pipeLink{done: make(chan struct{})}
	a := &pipeEnd{link: link, in: make(chan *proto.Envelope, bufferSize)}
	b := &pipeEnd{link: link, in: make(chan *proto.Envelope, bufferSize)}
	a.peer = b
	b.peer = a

	return a, b
}

// Send encodes and delivers the envelope to the peer
func (p *pipeEnd) Send(ctx context.Context, env *proto.Envelope) error {
	// Round-trip through the codec so nothing is shared with the peer
	data, err := Encode(env)
	if err != nil {
		return err
	}
	decoded, err := Decode(data)
	if err != nil {
		return err
	}

	select {
	case <-p.link.done:
		return closedError()
	default:
	}

	select {
	case p.peer.in <- decoded:
		return nil
	case <-p.link.done:
		return closedError()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the inbound queue
func (p *pipeEnd) Receive() <-chan *proto.Envelope {
	return p.in
}

// Done is closed when either end closes
func (p *pipeEnd) Done() <-chan struct{} {
	return p.link.done
}

// Close closes the link
func (p *pipeEnd) Close() error {
	p.link.closeOnce.Do(func() {
		close(p.link.done)
	})
	return nil
}
