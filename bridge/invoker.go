// Package bridge is the indirection through which every host capability is
// reached: disk, process execution, language tooling, git, AI and billing.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrClosed is returned for calls on a closed invoker.
var ErrClosed = errors.New("bridge: closed")

// Invoker executes a named host command.
type Invoker interface {
	Invoke(ctx context.Context, command string, payload any) (json.RawMessage, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, command string, payload any) (json.RawMessage, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, command string, payload any) (json.RawMessage, error) {
	return f(ctx, command, payload)
}

// RemoteError is a failure reported by the host.
type RemoteError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("host error %d: %s", e.Code, e.Message)
}

// Do invokes command and decodes its result into T. A payload that does not
// decode is reported as an error, like a transport failure.
func Do[T any](ctx context.Context, inv Invoker, command string, payload any) (T, error) {
	var out T
	if inv == nil {
		return out, fmt.Errorf("%s: %w", command, ErrClosed)
	}
	raw, err := inv.Invoke(ctx, command, payload)
	if err != nil {
		return out, fmt.Errorf("%s: %w", command, err)
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%s: decode result: %w", command, err)
	}
	return out, nil
}

// Payload converts an Invoke payload into raw JSON. Raw messages and byte
// slices pass through unchanged; nil becomes an empty object.
func Payload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		if len(p) == 0 {
			return json.RawMessage("{}"), nil
		}
		return p, nil
	case []byte:
		if len(p) == 0 {
			return json.RawMessage("{}"), nil
		}
		return json.RawMessage(p), nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}
