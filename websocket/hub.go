// Package websocket streams frame reports to WebSocket clients.
package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize = 64

	defaultIdleTimeout = 5 * time.Minute
)

// Hub broadcasts messages to every connected client. Clients too slow to
// keep up miss messages instead of slowing down the broadcaster.
type Hub struct {
	// The time a client can stay silent before being disconnected. Clients
	// can send any message to stay connected.
	IdleTimeout time.Duration

	mutex   sync.Mutex
	clients map[string]chan string
	closed  bool
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Broadcast sends the JSON encoding of v to every client.
func (h *Hub) Broadcast(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.New("encoding broadcast message failed").Wrap(err)
	}
	msg := string(b)

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for id, c := range h.clients {
		select {
		case c <- msg:
		default:
			logs.WithTag("client_id", id).Debug("dropping message for slow client")
			instrumentDropped()
		}
	}
	return nil
}

// Handler returns the WebSocket handler registering clients on the hub.
func (h *Hub) Handler(ctx context.Context) websocket.Handler {
	return func(conn *websocket.Conn) {
		h.Handle(ctx, conn)
	}
}

// Handle streams the broadcast messages to conn until the client disconnects,
// stays idle, or ctx is done.
func (h *Hub) Handle(ctx context.Context, conn *websocket.Conn) {
	id := uuid.NewString()
	sendChan, ok := h.register(id)
	if !ok {
		return
	}
	defer h.unregister(id)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logs.WithTag("client_id", id).Info("new client is connected")

	disconnectChan := make(chan error, 2)
	disconnect := func(err error) {
		select {
		case disconnectChan <- err:
		default:
		}
	}

	receivedChan := make(chan struct{}, 1)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for {
			var msg string
			if err := websocket.Message.Receive(conn, &msg); err != nil {
				disconnect(errors.New("receiving message failed").Wrap(err))
				return
			}

			select {
			case receivedChan <- struct{}{}:
			default:
			}
		}
	}()

	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return

			case msg := <-sendChan:
				if err := websocket.Message.Send(conn, msg); err != nil {
					instrumentSendError()
					disconnect(errors.New("sending message failed").Wrap(err))
					return
				}
				instrumentSent(len(msg))
			}
		}
	}()

	idleTimeout := h.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	var err error
loop:
	for {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break loop

		case <-idleTimer.C:
			err = errors.New("idle connection").WithTag("duration", idleTimeout.String())
			break loop

		case <-receivedChan:
			idleTimer.Stop()
			idleTimer.Reset(idleTimeout)

		case err = <-disconnectChan:
			break loop
		}
	}

	cancel()
	conn.Close()
	wg.Wait()

	logs.WithTag("client_id", id).
		WithTag("reason", err.Error()).
		Info("client is disconnected")
}

func (h *Hub) register(id string) (chan string, bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closed {
		return nil, false
	}
	if h.clients == nil {
		h.clients = make(map[string]chan string)
	}

	c := make(chan string, sendChanSize)
	h.clients[id] = c
	instrumentClients(len(h.clients))
	return c, true
}

func (h *Hub) unregister(id string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	delete(h.clients, id)
	instrumentClients(len(h.clients))
}

// Close stops accepting clients.
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.closed = true
}
