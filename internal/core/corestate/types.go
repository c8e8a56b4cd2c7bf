package corestate

// CoreState is the basic meta-information vital to the node.
type CoreState struct {
	NodeID string

	StartTimestampUnix int64

	NodeBinName string
	NodeVersion string

	Stage Stage

	NodePath string
	MetaDir  string
	RunFile  string
}
