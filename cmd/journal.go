package cmd

import (
	"github.com/akyaiy/GoSally-stream/hooks"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:     "journal",
	Aliases: []string{"j"},
	Short:   "List recent sessions from the node journal",
	Args:    cobra.NoArgs,
	RunE:    hooks.Journal,
}

func init() {
	rootCmd.AddCommand(journalCmd)
}
