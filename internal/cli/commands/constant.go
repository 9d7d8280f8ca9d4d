package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/palletbridge/palletbridge/client"
)

// NewConstantCommand creates the constant command
func NewConstantCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "constant <pallet> <name>",
		Short: "Decode a pallet constant from the runtime metadata",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, cleanup, err := loadSnapshot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			v, err := client.ConstantValue(meta, client.NewConstantAddress(args[0], args[1]))
			if err != nil {
				return err
			}

			color.New(color.FgCyan).Printf("%s.%s = ", args[0], args[1])
			fmt.Println(v)

			if withHash, _ := cmd.Flags().GetBool("hash"); withHash {
				h, err := meta.ConstantHash(args[0], args[1])
				if err != nil {
					return err
				}
				color.New(color.FgHiBlack).Printf("hash %s\n", h)
			}
			return nil
		},
	}

	cmd.Flags().String("file", "", "read the metadata blob from a file instead of the node")
	cmd.Flags().Bool("hash", false, "include the compatibility hash")
	return cmd
}
