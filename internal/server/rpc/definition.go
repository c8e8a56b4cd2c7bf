// Package rpc holds the JSON-RPC 2.0 envelopes exchanged over the event
// stream and the inbound POST channel, and the codec that tells them apart.
package rpc

import (
	"encoding/json"

	"github.com/sourcegraph/jsonrpc2"
)

const (
	JSONRPCVersion = "2.0"
)

// RPCRequest is a call that expects a response correlated by ID.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      jsonrpc2.ID     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// RPCNotification is fire-and-forget: it has no ID and never gets a response.
type RPCNotification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// RPCResponse carries either Result or Error for the request with the same ID.
// ID is nil only for errors that could not be attributed to a request.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *jsonrpc2.ID    `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpc2.Error `json:"error,omitempty"`
}

// MarshalJSON keeps "result" on the wire for successful responses whose
// result is empty.
func (r RPCResponse) MarshalJSON() ([]byte, error) {
	type plain RPCResponse
	if r.Error == nil && len(r.Result) == 0 {
		r.Result = json.RawMessage("null")
	}
	return json.Marshal(plain(r))
}

// IsError reports whether the response carries an error object.
func (r *RPCResponse) IsError() bool {
	return r.Error != nil
}
