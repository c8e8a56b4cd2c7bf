package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/akyaiy/GoSally-stream/hooks"
	"github.com/akyaiy/GoSally-stream/internal/core/corestate"
	"github.com/akyaiy/GoSally-stream/internal/engine/logs"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "node",
	Short: "Go Sally stream node",
	Long: `Go Sally stream node serves JSON-RPC tools over an event stream.
Clients open the stream, learn where to POST from the endpoint event
and receive every response on the stream.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func Execute() {
	log.SetOutput(os.Stdout)
	log.SetPrefix(logs.SetBrightBlack(fmt.Sprintf("(%s) ", corestate.StageNotReady)))
	log.SetFlags(log.Ldate | log.Ltime)
	hooks.Compositor.LoadCMDLine(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
