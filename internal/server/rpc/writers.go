package rpc

import (
	"encoding/json"
	"net/http"
)

func write(w http.ResponseWriter, status int, msg *RPCResponse) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(data)
	return err
}

// WriteError writes an error response as a plain HTTP reply. It is used
// for failures that happen before a message reaches a session stream.
func WriteError(w http.ResponseWriter, status int, errm *RPCResponse) error {
	return write(w, status, errm)
}

// Encode serializes any envelope for the event stream.
func Encode(msg any) ([]byte, error) {
	return json.Marshal(msg)
}
