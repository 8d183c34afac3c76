package transport

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/nkkko/textai/pkg/proto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Conn is the subset of a websocket connection the transport needs.
// Both gorilla and gofiber connections satisfy it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// WebSocket carries one envelope per text frame
type WebSocket struct {
	conn      Conn
	recv      chan *proto.Envelope
	done      chan struct{}
	writeMu   sync.Mutex
	closeOnce sync.Once
	logger    zerolog.Logger
}

// NewWebSocket wraps an established connection and starts reading from it
func NewWebSocket(conn Conn, bufferSize int) *WebSocket {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	ws := &WebSocket{
		conn:   conn,
		recv:   make(chan *proto.Envelope, bufferSize),
		done:   make(chan struct{}),
		logger: log.With().Str("component", "transport-ws").Logger(),
	}

	go ws.readLoop()

	return ws
}

// readLoop decodes frames until the connection fails or is closed
func (w *WebSocket) readLoop() {
	defer w.Close()

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
			default:
				w.logger.Debug().Err(err).Msg("WebSocket read ended")
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		env, err := Decode(data)
		if err != nil {
			w.logger.Warn().Err(err).Msg("Dropping malformed frame")
			continue
		}

		select {
		case w.recv <- env:
		case <-w.done:
			return
		}
	}
}

// Send writes the envelope as a text frame
func (w *WebSocket) Send(ctx context.Context, env *proto.Envelope) error {
	data, err := Encode(env)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	select {
	case <-w.done:
		return closedError()
	default:
	}

	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		w.Close()
		return closedError()
	}
	return nil
}

// Receive returns the inbound queue
func (w *WebSocket) Receive() <-chan *proto.Envelope {
	return w.recv
}

// Done is closed once the connection is gone
func (w *WebSocket) Done() <-chan struct{} {
	return w.done
}

// Close closes the underlying connection
func (w *WebSocket) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.conn.Close()
	})
	return err
}
