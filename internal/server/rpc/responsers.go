package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/sourcegraph/jsonrpc2"
)

// NewError builds an error response. data may be nil.
func NewError(code int64, message string, data any, id *jsonrpc2.ID) *RPCResponse {
	rpcErr := &jsonrpc2.Error{
		Code:    code,
		Message: message,
	}
	if data != nil {
		rpcErr.SetError(data)
	}
	return &RPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   rpcErr,
	}
}

// NewErrorFrom wraps an already built error object.
func NewErrorFrom(rpcErr *jsonrpc2.Error, id *jsonrpc2.ID) *RPCResponse {
	return &RPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   rpcErr,
	}
}

// NewResponse builds a success response, marshalling result unless it is
// already raw JSON.
func NewResponse(result any, id *jsonrpc2.ID) (*RPCResponse, error) {
	raw, err := marshalRaw(result)
	if err != nil {
		return nil, fmt.Errorf("error marshaling result: %w", err)
	}
	return &RPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  raw,
	}, nil
}

// NewRequest builds a request envelope.
func NewRequest(id jsonrpc2.ID, method string, params any) (*RPCRequest, error) {
	raw, err := marshalRaw(params)
	if err != nil {
		return nil, fmt.Errorf("error marshaling params: %w", err)
	}
	return &RPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  raw,
	}, nil
}

// NewNotification builds a notification envelope.
func NewNotification(method string, params any) (*RPCNotification, error) {
	raw, err := marshalRaw(params)
	if err != nil {
		return nil, fmt.Errorf("error marshaling params: %w", err)
	}
	return &RPCNotification{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  raw,
	}, nil
}

func marshalRaw(v any) (json.RawMessage, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return val, nil
	case []byte:
		return json.RawMessage(val), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// NumericID returns an integer id.
func NumericID(n uint64) jsonrpc2.ID {
	return jsonrpc2.ID{Num: n}
}

// StringID returns a string id.
func StringID(s string) jsonrpc2.ID {
	return jsonrpc2.ID{Str: s, IsString: true}
}
