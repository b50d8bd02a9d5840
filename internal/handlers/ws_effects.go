// internal/handlers/ws_effects.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/cambia-ar/internal/game"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoClient is returned by effects issued while no presentation client is attached.
	ErrNoClient = errors.New("no presentation client attached")
	// ErrClientGone is returned for effects still pending when the client disconnects.
	ErrClientGone = errors.New("presentation client disconnected")
)

// clientConn serializes writes to one websocket. Messages are queued so that
// callers holding the session lock never wait on the network.
type clientConn struct {
	c    *websocket.Conn
	out  chan []byte
	done chan struct{}
	once sync.Once
	log  *logrus.Entry
}

func newClientConn(c *websocket.Conn, log *logrus.Entry) *clientConn {
	cc := &clientConn{
		c:    c,
		out:  make(chan []byte, 64),
		done: make(chan struct{}),
		log:  log,
	}
	go cc.writeLoop()
	return cc
}

func (cc *clientConn) writeLoop() {
	for {
		select {
		case <-cc.done:
			return
		case data := <-cc.out:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := cc.c.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				cc.log.Warnf("Failed to write message: %v", err)
				cc.close()
				return
			}
		}
	}
}

// send queues message. It fails once the connection is closed or the queue is full.
func (cc *clientConn) send(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	select {
	case <-cc.done:
		return ErrClientGone
	default:
	}
	select {
	case cc.out <- data:
		return nil
	case <-cc.done:
		return ErrClientGone
	default:
		return fmt.Errorf("outbound queue full")
	}
}

func (cc *clientConn) close() {
	cc.once.Do(func() { close(cc.done) })
}

// effectMessage asks the client to run a command and acknowledge it.
type effectMessage struct {
	Type    string       `json:"type"`
	ID      uint64       `json:"id"`
	Command game.Command `json:"command"`
}

// wsEffects implements game.Effects over the attached presentation client.
// Each command is sent with an id and completes when the client replies with
// effect_done for that id.
type wsEffects struct {
	timeout time.Duration
	log     *logrus.Entry

	mu      sync.Mutex
	conn    *clientConn
	nextID  uint64
	pending map[uint64]chan error
}

func newWSEffects(timeout time.Duration, log *logrus.Entry) *wsEffects {
	return &wsEffects{
		timeout: timeout,
		log:     log,
		pending: make(map[uint64]chan error),
	}
}

func (e *wsEffects) Do(ctx context.Context, cmd game.Command) error {
	e.mu.Lock()
	conn := e.conn
	if conn == nil {
		e.mu.Unlock()
		return ErrNoClient
	}
	e.nextID++
	id := e.nextID
	ch := make(chan error, 1)
	e.pending[id] = ch
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.pending, id)
		e.mu.Unlock()
	}()

	if err := conn.send(effectMessage{Type: "effect", ID: id, Command: cmd}); err != nil {
		return err
	}
	e.log.Tracef("Sent effect %d: %s", id, cmd)

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	select {
	case err := <-ch:
		return err
	case <-conn.done:
		return ErrClientGone
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ack completes the pending effect id. A non-empty errMsg fails it.
func (e *wsEffects) ack(id uint64, errMsg string) bool {
	e.mu.Lock()
	ch, ok := e.pending[id]
	e.mu.Unlock()
	if !ok {
		return false
	}
	var err error
	if errMsg != "" {
		err = errors.New(errMsg)
	}
	select {
	case ch <- err:
	default:
	}
	return true
}

// attach binds conn as the presentation client. Only one client may be attached.
func (e *wsEffects) attach(conn *clientConn) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		return false
	}
	e.conn = conn
	return true
}

// detach unbinds conn; pending effects fail with ErrClientGone.
func (e *wsEffects) detach(conn *clientConn) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == conn {
		e.conn = nil
	}
	conn.close()
}
