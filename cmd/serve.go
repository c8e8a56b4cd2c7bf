package cmd

import (
	"github.com/akyaiy/GoSally-stream/hooks"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run", "r"},
	Short:   "Run node normally",
	Long: `
"serve" starts the node with settings depending on the configuration file`,
	// hooks.Serve essentially the heart of the program
	Run: hooks.Serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
