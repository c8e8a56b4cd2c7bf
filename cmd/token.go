package cmd

import (
	"github.com/akyaiy/GoSally-stream/hooks"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Mint a bearer token signed with auth.jwt_secret",
	Args:  cobra.ExactArgs(1),
	RunE:  hooks.Token,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}
