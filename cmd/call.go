package cmd

import (
	"github.com/akyaiy/GoSally-stream/hooks"
	"github.com/spf13/cobra"
)

var callCmd = &cobra.Command{
	Use:   "call <method>",
	Short: "Send one request to a running node",
	Long: `
"call" opens a session, performs the handshake, sends <method> with the
given --params and prints the result as JSON`,
	Example: `  node call tools/list
  node call tools/call -p '{"name":"echo","arguments":{"hi":1}}'`,
	Args: cobra.ExactArgs(1),
	RunE: hooks.Call,
}

func init() {
	rootCmd.AddCommand(callCmd)
}
