package commands

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/palletbridge/palletbridge/client"
)

// NewStorageCommand creates the storage command
func NewStorageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage <pallet> <entry>",
		Short: "Fetch and decode a plain storage value from the node",
		Long: `Fetch a plain (keyless) storage entry from the connected node and
decode it against the runtime metadata. Map entries need typed key
arguments and are out of reach for the command line; use the client
library for those.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, cfg, err := connectNode(cmd)
			if err != nil {
				return err
			}
			defer node.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Node.Timeout())
			defer cancel()

			c, err := client.NewOnlineClient(ctx, node)
			if err != nil {
				return err
			}

			v, found, err := c.FetchStorage(ctx, client.NewStorageAddress(args[0], args[1]))
			if err != nil {
				return err
			}
			if !found {
				color.New(color.FgYellow).Printf("%s.%s is not set\n", args[0], args[1])
				return nil
			}
			color.New(color.FgCyan).Printf("%s.%s = ", args[0], args[1])
			fmt.Println(v)
			return nil
		},
	}
	return cmd
}
