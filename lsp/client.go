package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ErrClosed is returned for calls on a client whose server has gone away.
var ErrClosed = errors.New("lsp: client closed")

// Client speaks JSON-RPC over stdio to a language server process.
type Client struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	log     zerolog.Logger
	writeMu sync.Mutex
	mu      sync.Mutex
	nextID  atomic.Int64
	pending map[int64]chan rpcResult
	notify  func(method string, params json.RawMessage)
	closed  atomic.Bool
	done    chan struct{}
}

type rpcResult struct {
	result json.RawMessage
	err    error
}

type jsonrpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonrpcNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonrpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Start launches a language server and returns a client connected to its
// stdio. The process is killed when ctx is cancelled.
func Start(ctx context.Context, log zerolog.Logger, command string, args ...string) (*Client, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return nil, fmt.Errorf("start %s: %w", command, err)
	}
	c := newClient(stdout, stdin, log.With().Str("server", command).Logger())
	c.cmd = cmd
	return c, nil
}

// NewStreamClient connects to a server over an existing stream pair.
func NewStreamClient(r io.Reader, w io.WriteCloser, log zerolog.Logger) *Client {
	return newClient(r, w, log)
}

func newClient(r io.Reader, w io.WriteCloser, log zerolog.Logger) *Client {
	c := &Client{
		stdin:   w,
		stdout:  bufio.NewReader(r),
		log:     log,
		pending: make(map[int64]chan rpcResult),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// SetNotifyHandler registers a callback for server notifications.
func (c *Client) SetNotifyHandler(fn func(method string, params json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = fn
}

// Done is closed when the server's output stream ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer c.cleanupPending()
	for {
		msg, err := c.readMessage()
		if err != nil {
			if !errors.Is(err, io.EOF) && !c.closed.Load() {
				c.log.Debug().Err(err).Msg("lsp read loop stopped")
			}
			return
		}

		if msg.ID != nil && msg.Method == "" {
			c.mu.Lock()
			ch, ok := c.pending[*msg.ID]
			if ok {
				delete(c.pending, *msg.ID)
			}
			c.mu.Unlock()
			if ok {
				if msg.Error != nil {
					ch <- rpcResult{err: fmt.Errorf("rpc error %d: %s", msg.Error.Code, msg.Error.Message)}
				} else {
					ch <- rpcResult{result: msg.Result}
				}
				close(ch)
			}
			continue
		}

		if msg.ID != nil {
			// Server-to-client requests (workspace/configuration and friends)
			// get an empty result so the server does not stall.
			_ = c.sendMessage(map[string]any{"jsonrpc": "2.0", "id": *msg.ID, "result": nil})
			continue
		}

		if msg.Method != "" {
			c.mu.Lock()
			fn := c.notify
			c.mu.Unlock()
			if fn != nil {
				fn(msg.Method, msg.Params)
			}
		}
	}
}

func (c *Client) cleanupPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.pending {
		close(ch)
	}
	c.pending = map[int64]chan rpcResult{}
}

func (c *Client) readMessage() (jsonrpcMessage, error) {
	var contentLength int
	for {
		line, err := c.stdout.ReadString('\n')
		if err != nil {
			return jsonrpcMessage{}, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if name, value, ok := strings.Cut(line, ":"); ok && strings.EqualFold(name, "content-length") {
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				contentLength = n
			}
		}
	}
	if contentLength <= 0 {
		return jsonrpcMessage{}, fmt.Errorf("invalid content-length: %d", contentLength)
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(c.stdout, body); err != nil {
		return jsonrpcMessage{}, err
	}

	var msg jsonrpcMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return jsonrpcMessage{}, err
	}
	return msg, nil
}

func (c *Client) sendMessage(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed.Load() {
		return ErrClosed
	}
	if _, err := io.WriteString(c.stdin, header); err != nil {
		return err
	}
	_, err = c.stdin.Write(data)
	return err
}

// Call sends a request and waits for the response.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	ch := make(chan rpcResult, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	req := jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}
	if err := c.sendMessage(req); err != nil {
		return nil, err
	}

	select {
	case result, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		if result.err != nil {
			return nil, result.err
		}
		return result.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Notify sends a notification (no response expected).
func (c *Client) Notify(method string, params any) error {
	return c.sendMessage(jsonrpcNotification{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	})
}

// DidOpen notifies the server that a document is now open in the editor.
func (c *Client) DidOpen(uri, languageID string, version int, text string) error {
	return c.Notify("textDocument/didOpen", map[string]any{
		"textDocument": TextDocumentItem{
			URI:        uri,
			LanguageID: languageID,
			Version:    version,
			Text:       text,
		},
	})
}

// DidChange sends the full document text as the new version.
func (c *Client) DidChange(uri string, version int, text string) error {
	return c.Notify("textDocument/didChange", map[string]any{
		"textDocument":   VersionedTextDocumentIdentifier{URI: uri, Version: version},
		"contentChanges": []map[string]any{{"text": text}},
	})
}

// DidClose notifies the server that a document is closed.
func (c *Client) DidClose(uri string) error {
	return c.Notify("textDocument/didClose", map[string]any{
		"textDocument": TextDocumentIdentifier{URI: uri},
	})
}

// Completion requests completion items at pos. Both the list and the bare
// array result forms are accepted.
func (c *Client) Completion(ctx context.Context, uri string, pos Position) ([]CompletionItem, error) {
	result, err := c.Call(ctx, "textDocument/completion", map[string]any{
		"textDocument": TextDocumentIdentifier{URI: uri},
		"position":     pos,
	})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}

	var list CompletionList
	if err := json.Unmarshal(result, &list); err == nil && list.Items != nil {
		return list.Items, nil
	}

	var items []CompletionItem
	if err := json.Unmarshal(result, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Hover requests hover information at pos. A null result yields nil.
func (c *Client) Hover(ctx context.Context, uri string, pos Position) (*Hover, error) {
	result, err := c.Call(ctx, "textDocument/hover", map[string]any{
		"textDocument": TextDocumentIdentifier{URI: uri},
		"position":     pos,
	})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}
	var hover Hover
	if err := json.Unmarshal(result, &hover); err != nil {
		return nil, err
	}
	return &hover, nil
}

// Initialize sends initialize and initialized notifications to the LSP server.
func (c *Client) Initialize(ctx context.Context, rootURI string) error {
	params := map[string]any{
		"processId": os.Getpid(),
		"rootUri":   rootURI,
		"capabilities": map[string]any{
			"textDocument": map[string]any{
				"synchronization": map[string]any{"didSave": false},
				"completion": map[string]any{
					"completionItem": map[string]any{
						"snippetSupport": false,
					},
				},
				"hover": map[string]any{
					"contentFormat": []string{"plaintext", "markdown"},
				},
				"publishDiagnostics": map[string]any{},
			},
		},
	}
	if _, err := c.Call(ctx, "initialize", params); err != nil {
		return err
	}
	return c.Notify("initialized", map[string]any{})
}

// Close shuts down the LSP server and clears pending requests.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.writeMu.Lock()
	if c.stdin != nil {
		_ = c.stdin.Close()
	}
	c.writeMu.Unlock()

	if c.cmd != nil {
		return c.cmd.Wait()
	}
	return nil
}

// IsTransportError reports whether err means the server connection is gone
// and the client should be restarted.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"broken pipe",
		"connection reset",
		"read/write on closed pipe",
		"file already closed",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
