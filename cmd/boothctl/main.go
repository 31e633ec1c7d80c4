package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "boothctl",
		Short: "Photo booth companion tools",
		Long: `boothctl bundles the tools that run next to the photo booth:
the CUPS print log report, the tweet bridge and its client.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newBridgeCmd())
	rootCmd.AddCommand(newSendURLCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
