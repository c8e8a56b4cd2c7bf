package config

// StreamRoute and MessageRoute are the default paths of the event stream
// and of the message endpoint.
var StreamRoute string = "/sse"

var MessageRoute string = "/rpc"

// NodeVersion is the version of the node. It can be set by the build system or manually.
// If not set, it will return "v0.0.0-none" by default
var NodeVersion string

// NodeName is reported to clients in the initialize handshake.
var NodeName string = "gosally-stream"

var MetaDir string = "./.meta"

func init() {
	if NodeVersion == "" {
		NodeVersion = "v0.0.0-none"
	}
}
