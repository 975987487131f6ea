// Package cdp implements the watcher's CDP session (spec.md §4.3, C3): a
// JSON-RPC client over a single WebSocket with id→pending-reply
// correlation, synchronous-dispatch-order domain events, target
// discovery/matching, and a reconnect/backoff loop that replays the
// attach sequence on every new connection.
//
// Grounded on the read-loop / pending-call-map design of
// other_examples/3b352a62_chromedp-chromedp__handler.go.go
// (TargetHandler.res map[int64]chan *cdp.Message, split on msg.Method !=
// "" vs msg.ID != 0) and other_examples/09c6184e_chromedp-chromedp__target.go.go
// (target discovery), adapted from chromedp's channel-fan-out event
// model to the spec's synchronous-handler-callback model (spec.md §4.3
// "onEvent(method, handler) ... each called synchronously in dispatch
// order").
package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/argus-dev/argus/internal/apierr"
	"github.com/argus-dev/argus/internal/util"
)

// DefaultTimeout is sendAndWait's default reply timeout (spec.md §4.3).
const DefaultTimeout = 30 * time.Second

// wireMessage is the JSON shape of both outgoing requests and incoming
// responses/events (spec.md §4.3 "numeric id for requests and dotted
// method for events").
type wireMessage struct {
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type pendingCall struct {
	result chan json.RawMessage
	err    chan error
}

type listener struct {
	id int64
	fn func(json.RawMessage)
}

// wireConn is the minimal transport Session needs: a full-duplex framed
// message stream. *websocket.Conn satisfies it directly; the extension
// adapter (source/extension_adapter.go) supplies a Native-Messaging-
// backed implementation so a Session can sit on top of either transport
// indistinguishably (spec.md §4.4 "from the watcher's perspective it is
// indistinguishable from a direct CDP session").
type wireConn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Session is a single logical CDP connection, over either a direct
// WebSocket (spec.md §4.3) or a Native-Messaging-proxied transport
// (spec.md §4.4). It owns exactly one connection; reconnect/backoff
// across connections is the source adapter's job (internal/source).
type Session struct {
	conn wireConn

	writeMu sync.Mutex
	nextID  int64

	mu      sync.Mutex
	pending map[int64]*pendingCall
	lsnr    map[string][]listener
	nextLID int64

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  atomic.Value // error
}

// Dial opens a WebSocket to url and starts the read loop. Contract: at
// most one pending entry per id; the dispatcher never delivers a
// response to the wrong waiter (spec.md §4.3).
func Dial(ctx context.Context, url string) (*Session, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, apierr.Wrap(err, apierr.CodeConnectFailed, "cdp dial failed").WithContext("url", url)
	}
	return newSession(conn), nil
}

// NewSession wraps an already-established wireConn (used by the
// extension adapter's Native-Messaging transport, source/extension_adapter.go).
func NewSession(conn wireConn) *Session {
	return newSession(conn)
}

func newSession(conn wireConn) *Session {
	s := &Session{
		conn:    conn,
		pending: make(map[int64]*pendingCall),
		lsnr:    make(map[string][]listener),
		closed:  make(chan struct{}),
	}
	util.SafeGo(s.readLoop)
	return s
}

// SendAndWait assigns a process-unique id, registers a pending entry,
// sends the request, and blocks for a matching reply, a protocol error,
// the timeout, or the socket closing (spec.md §4.3 "sendAndWait").
func (s *Session) SendAndWait(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var raw json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, apierr.Wrap(err, apierr.CodeInvalidBody, "cannot encode cdp params")
		}
		raw = encoded
	}

	id := atomic.AddInt64(&s.nextID, 1)
	call := &pendingCall{result: make(chan json.RawMessage, 1), err: make(chan error, 1)}

	s.mu.Lock()
	s.pending[id] = call
	s.mu.Unlock()

	cleanup := func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}

	msg := wireMessage{ID: id, Method: method, Params: raw}
	if err := s.send(msg); err != nil {
		cleanup()
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-call.result:
		return result, nil
	case err := <-call.err:
		cleanup()
		return nil, err
	case <-timer.C:
		cleanup()
		return nil, apierr.New(apierr.CodeCDPTimeout, fmt.Sprintf("cdp call %s timed out after %s", method, timeout))
	case <-ctx.Done():
		cleanup()
		return nil, apierr.Wrap(ctx.Err(), apierr.CodeCDPTimeout, "cdp call canceled")
	case <-s.closed:
		cleanup()
		return nil, apierr.New(apierr.CodeCDPClosed, "cdp session closed")
	}
}

func (s *Session) send(msg wireMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return apierr.Wrap(err, apierr.CodeInvalidBody, "cannot encode cdp message")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return apierr.Wrap(err, apierr.CodeWSError, "cdp write failed")
	}
	return nil
}

// OnEvent registers handler to be called, synchronously and in dispatch
// order alongside every other handler for method, whenever a matching
// event arrives. The returned func unsubscribes it (spec.md §4.3
// "onEvent(method, handler) → unsubscribe").
func (s *Session) OnEvent(method string, handler func(params json.RawMessage)) func() {
	s.mu.Lock()
	id := s.nextLID
	s.nextLID++
	s.lsnr[method] = append(s.lsnr[method], listener{id: id, fn: handler})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		list := s.lsnr[method]
		for i, l := range list {
			if l.id == id {
				s.lsnr[method] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
	}
}

// Close closes the underlying WebSocket and rejects every pending call
// with CodeCDPClosed. Idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.conn.Close()
	})
	if err, ok := s.closeErr.Load().(error); ok {
		return err
	}
	return nil
}

// Err returns the error that ended the read loop, if any (nil while the
// session is still live, and nil if it was closed cleanly by Close).
func (s *Session) Err() error {
	err, _ := s.closeErr.Load().(error)
	return err
}

// ClosedCh returns a channel closed once the session has ended, letting
// a reconnect loop wait on session death without polling (connector.go).
func (s *Session) ClosedCh() <-chan struct{} {
	return s.closed
}

// readLoop reads frames and dispatches responses to pending calls and
// events to subscribers (T1 "WebSocket reader loop ... never blocks on
// user code", spec.md §5 Tasks). Never let a single malformed frame or a
// panicking handler kill the loop.
func (s *Session) readLoop() {
	defer func() {
		s.mu.Lock()
		pending := s.pending
		s.pending = make(map[int64]*pendingCall)
		s.mu.Unlock()
		for _, call := range pending {
			call.err <- apierr.New(apierr.CodeCDPClosed, "cdp session closed")
		}
		s.closeOnce.Do(func() {
			close(s.closed)
			s.conn.Close()
		})
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.closeErr.Store(apierr.Wrap(err, apierr.CodeCDPClosed, "cdp read failed"))
			return
		}

		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn().Err(err).Msg("discarding malformed cdp frame")
			continue
		}

		switch {
		case msg.Method != "":
			s.dispatchEvent(msg.Method, msg.Params)
		case msg.ID != 0:
			s.dispatchReply(msg)
		default:
			log.Warn().Msg("discarding cdp frame with neither id nor method")
		}
	}
}

func (s *Session) dispatchReply(msg wireMessage) {
	s.mu.Lock()
	call, ok := s.pending[msg.ID]
	if ok {
		delete(s.pending, msg.ID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	if msg.Error != nil {
		call.err <- apierr.Operator(msg.Error.Message)
		return
	}
	call.result <- msg.Result
}

func (s *Session) dispatchEvent(method string, params json.RawMessage) {
	s.mu.Lock()
	handlers := make([]listener, len(s.lsnr[method]))
	copy(handlers, s.lsnr[method])
	s.mu.Unlock()

	for _, l := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Str("method", method).Msg("cdp event handler panicked")
				}
			}()
			l.fn(params)
		}()
	}
}
