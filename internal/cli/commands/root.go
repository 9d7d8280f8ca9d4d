package commands

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/palletbridge/palletbridge/metadata"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "palletbridge",
		Short: "Metadata-driven ledger node client and inspector",
		Long: color.CyanString(`palletbridge - metadata-driven node tooling

palletbridge talks to ledger nodes whose APIs are described by runtime
metadata. It decodes the node's self-describing type registry and lets
you inspect pallets, compute compatibility hashes, read constants and
fetch storage without any generated bindings.`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("url", "", "node websocket URL (overrides config)")

	// Add subcommands
	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewMetadataCommand())
	rootCmd.AddCommand(NewConstantCommand())
	rootCmd.AddCommand(NewStorageCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and supported metadata format",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (%s, built %s)\n",
				color.CyanString("palletbridge"), Version, GitCommit, BuildDate)
			fmt.Fprintf(out, "  metadata format: v%d\n", metadata.SupportedFormat)
			fmt.Fprintf(out, "  go:              %s\n", goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
