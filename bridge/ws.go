package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type wsRequest struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type wsMessage struct {
	ID     *int64          `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RemoteError    `json:"error,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

type wsResult struct {
	result json.RawMessage
	err    error
}

// WSInvoker reaches a host over a WebSocket JSON-RPC connection.
type WSInvoker struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	mu      sync.Mutex
	nextID  atomic.Int64
	pending map[int64]chan wsResult
	notify  func(method string, params json.RawMessage)
	closed  atomic.Bool
	done    chan struct{}
	log     zerolog.Logger
}

// DialWS connects to the host at url (ws:// or wss://).
func DialWS(ctx context.Context, url string, log zerolog.Logger) (*WSInvoker, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("dial host: %w", err)
	}
	w := &WSInvoker{
		conn:    conn,
		pending: make(map[int64]chan wsResult),
		done:    make(chan struct{}),
		log:     log,
	}
	go w.readLoop()
	return w, nil
}

// SetNotifyHandler registers a callback for host notifications such as
// fs:changed.
func (w *WSInvoker) SetNotifyHandler(fn func(method string, params json.RawMessage)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notify = fn
}

// Done is closed once the connection is gone.
func (w *WSInvoker) Done() <-chan struct{} {
	return w.done
}

func (w *WSInvoker) readLoop() {
	defer close(w.done)
	defer w.failPending()
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			if !w.closed.Load() {
				w.log.Debug().Err(err).Msg("host connection lost")
			}
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			w.log.Debug().Err(err).Msg("dropping malformed host message")
			continue
		}

		if msg.ID != nil {
			w.mu.Lock()
			ch, ok := w.pending[*msg.ID]
			if ok {
				delete(w.pending, *msg.ID)
			}
			w.mu.Unlock()
			if ok {
				if msg.Error != nil {
					ch <- wsResult{err: msg.Error}
				} else {
					ch <- wsResult{result: msg.Result}
				}
				close(ch)
			}
			continue
		}

		if msg.Method != "" {
			w.mu.Lock()
			fn := w.notify
			w.mu.Unlock()
			if fn != nil {
				fn(msg.Method, msg.Params)
			}
		}
	}
}

func (w *WSInvoker) failPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.pending {
		close(ch)
	}
	// nil marks the connection dead; Invoke refuses to register after this.
	w.pending = nil
}

// Invoke sends command and waits for the host's answer.
func (w *WSInvoker) Invoke(ctx context.Context, command string, payload any) (json.RawMessage, error) {
	if w.closed.Load() {
		return nil, ErrClosed
	}
	params, err := Payload(payload)
	if err != nil {
		return nil, err
	}
	id := w.nextID.Add(1)
	ch := make(chan wsResult, 1)

	w.mu.Lock()
	if w.pending == nil {
		w.mu.Unlock()
		return nil, ErrClosed
	}
	w.pending[id] = ch
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.pending, id)
		w.mu.Unlock()
	}()

	data, err := json.Marshal(wsRequest{ID: id, Method: command, Params: params})
	if err != nil {
		return nil, err
	}
	w.writeMu.Lock()
	err = w.conn.WriteMessage(websocket.TextMessage, data)
	w.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}

	select {
	case res, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		if res.err != nil {
			return nil, res.err
		}
		return res.result, nil
	case <-w.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts the connection and fails outstanding calls.
func (w *WSInvoker) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	w.writeMu.Lock()
	_ = w.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	w.writeMu.Unlock()
	return w.conn.Close()
}
