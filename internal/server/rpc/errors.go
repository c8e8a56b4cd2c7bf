package rpc

const (
	ErrParseError  = -32700
	ErrParseErrorS = "Parse error"

	ErrInvalidRequest  = -32600
	ErrInvalidRequestS = "Invalid Request"

	ErrMethodNotFound  = -32601
	ErrMethodNotFoundS = "Method not found"

	ErrInvalidParams  = -32602
	ErrInvalidParamsS = "Invalid params"

	ErrInternalError  = -32603
	ErrInternalErrorS = "Internal error"

	// ErrToolFailed is returned when a tool ran and reported a failure.
	ErrToolFailed  = -32000
	ErrToolFailedS = "Tool execution failed"

	ErrSessionClosed  = -32030
	ErrSessionClosedS = "The session is closed"
)
