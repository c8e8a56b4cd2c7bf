package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sourcegraph/jsonrpc2"
)

// Kind is the structural class of a decoded message.
type Kind int

const (
	KindInvalid Kind = iota
	KindRequest
	KindNotification
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	default:
		return "invalid"
	}
}

var (
	// ErrParse means the payload is not a JSON object.
	ErrParse = errors.New(ErrParseErrorS)
	// ErrInvalid means the payload is JSON but not a JSON-RPC envelope.
	ErrInvalid = errors.New(ErrInvalidRequestS)
)

// Message is the union of every envelope shape. Decode fills it and Kind
// classifies it by which members are present.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *jsonrpc2.ID    `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpc2.Error `json:"error,omitempty"`
}

// Decode parses one JSON-RPC message. Batches are rejected.
func Decode(data []byte) (*Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrParse)
	}
	if trimmed[0] == '[' {
		return nil, fmt.Errorf("%w: batch messages are not supported", ErrInvalid)
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrParse)
	}
	var msg Message
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return &msg, nil
}

// Kind reports what the message is: a request has id and method, a
// notification has method only, a response has id plus result or error.
func (m *Message) Kind() Kind {
	hasID := m.ID != nil
	hasMethod := m.Method != ""
	hasOutcome := m.Result != nil || m.Error != nil
	switch {
	case hasMethod && hasID && !hasOutcome:
		return KindRequest
	case hasMethod && !hasID && !hasOutcome:
		return KindNotification
	case !hasMethod && hasID && hasOutcome:
		return KindResponse
	default:
		return KindInvalid
	}
}

// Request returns the message as a request. It is only meaningful when
// Kind is KindRequest.
func (m *Message) Request() *RPCRequest {
	req := &RPCRequest{
		JSONRPC: m.JSONRPC,
		Method:  m.Method,
		Params:  m.Params,
	}
	if m.ID != nil {
		req.ID = *m.ID
	}
	return req
}

// Notification returns the message as a notification.
func (m *Message) Notification() *RPCNotification {
	return &RPCNotification{
		JSONRPC: m.JSONRPC,
		Method:  m.Method,
		Params:  m.Params,
	}
}

// Response returns the message as a response.
func (m *Message) Response() *RPCResponse {
	return &RPCResponse{
		JSONRPC: m.JSONRPC,
		ID:      m.ID,
		Result:  m.Result,
		Error:   m.Error,
	}
}

// Validate checks the protocol version marker.
func (m *Message) Validate() error {
	if m.JSONRPC != JSONRPCVersion {
		return fmt.Errorf("%w: unsupported jsonrpc version %q", ErrInvalid, m.JSONRPC)
	}
	if m.Kind() == KindInvalid {
		return fmt.Errorf("%w: message is neither request, notification nor response", ErrInvalid)
	}
	return nil
}

// IDKey is a map key that keeps numeric and string ids apart.
func IDKey(id jsonrpc2.ID) string {
	if id.IsString {
		return "s:" + id.Str
	}
	return fmt.Sprintf("n:%d", id.Num)
}
