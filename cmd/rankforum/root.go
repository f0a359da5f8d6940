package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var version = "dev"

func Execute(ctx context.Context) error {
	root := &cobra.Command{Use: "rankforum", Short: "Reputation-ledger forum engine"}
	root.AddCommand(serveCmd())
	root.AddCommand(versionCmd())
	return root.ExecuteContext(ctx)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("rankforum", version)
		},
	}
}
