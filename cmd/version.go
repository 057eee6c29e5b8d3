package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stakewatch/vault-rewards/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of vault-rewards",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Version: %s\n", version.GetVersion())
		fmt.Printf("Commit: %s\n", version.GetCommit())
	},
}
