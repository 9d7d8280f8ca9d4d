package commands

import (
	"fmt"
	"sort"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/palletbridge/palletbridge/metadata"
)

// NewMetadataCommand creates the metadata inspection command
func NewMetadataCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metadata [pallet]",
		Short: "Inspect the node's runtime metadata",
		Long: `Decode the node's metadata and show its pallets: calls, storage
entries, constants, events and errors, along with the structural
compatibility hashes precompiled bindings validate against.

With no pallet argument an interactive picker is shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, cleanup, err := loadSnapshot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if list, _ := cmd.Flags().GetBool("list"); list {
				return listPallets(meta)
			}

			var name string
			if len(args) == 1 {
				name = args[0]
			} else {
				name, err = pickPallet(meta)
				if err != nil {
					return err
				}
			}

			withHashes, _ := cmd.Flags().GetBool("hashes")
			return printPallet(meta, name, withHashes)
		},
	}

	cmd.Flags().String("file", "", "read the metadata blob from a file instead of the node")
	cmd.Flags().Bool("list", false, "list pallet names and exit")
	cmd.Flags().Bool("hashes", false, "include compatibility hashes")
	return cmd
}

func palletNames(meta *metadata.Metadata) []string {
	pallets := meta.Pallets()
	names := make([]string, 0, len(pallets))
	for _, p := range pallets {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

func pickPallet(meta *metadata.Metadata) (string, error) {
	var name string
	prompt := &survey.Select{
		Message:  "Select a pallet:",
		Options:  palletNames(meta),
		PageSize: 15,
	}
	if err := survey.AskOne(prompt, &name); err != nil {
		return "", err
	}
	return name, nil
}

func listPallets(meta *metadata.Metadata) error {
	nameColor := color.New(color.FgCyan)
	for _, name := range palletNames(meta) {
		p, err := meta.Pallet(name)
		if err != nil {
			return err
		}
		nameColor.Printf("%-24s", name)
		fmt.Printf(" index=%-3d calls=%-3d storage=%-3d constants=%-3d events=%-3d errors=%d\n",
			p.Index, len(p.Calls), len(p.Storage), len(p.Constants), len(p.Events), len(p.Errors))
	}
	return nil
}

func printPallet(meta *metadata.Metadata, name string, withHashes bool) error {
	p, err := meta.Pallet(name)
	if err != nil {
		return err
	}

	title := color.New(color.FgCyan, color.Bold)
	section := color.New(color.FgYellow, color.Bold)
	hashColor := color.New(color.FgHiBlack)

	title.Printf("Pallet %s", p.Name)
	fmt.Printf(" (index %d)\n", p.Index)
	if withHashes {
		h, err := meta.PalletHash(p.Name)
		if err != nil {
			return err
		}
		hashColor.Printf("  hash %s\n", h)
	}

	if len(p.Calls) > 0 {
		section.Println("\nCalls")
		for _, c := range p.Calls {
			fmt.Printf("  %s(", c.Name)
			for i, a := range c.Args {
				if i > 0 {
					fmt.Print(", ")
				}
				fmt.Printf("%s: #%d", a.Name, a.Type)
			}
			fmt.Printf(")  [index %d]\n", c.Index)
			if withHashes {
				h, err := meta.CallHash(p.Name, c.Name)
				if err != nil {
					return err
				}
				hashColor.Printf("    %s\n", h)
			}
		}
	}

	if len(p.Storage) > 0 {
		section.Println("\nStorage")
		for _, e := range p.Storage {
			if e.IsPlain() {
				fmt.Printf("  %s: #%d\n", e.Name, e.Value)
			} else {
				fmt.Printf("  %s: map(%d keys) -> #%d\n", e.Name, len(e.Keys), e.Value)
			}
			if withHashes {
				h, err := meta.StorageHash(p.Name, e.Name)
				if err != nil {
					return err
				}
				hashColor.Printf("    %s\n", h)
			}
		}
	}

	if len(p.Constants) > 0 {
		section.Println("\nConstants")
		for _, c := range p.Constants {
			fmt.Printf("  %s: #%d (%d bytes)\n", c.Name, c.Type, len(c.Value))
			if withHashes {
				h, err := meta.ConstantHash(p.Name, c.Name)
				if err != nil {
					return err
				}
				hashColor.Printf("    %s\n", h)
			}
		}
	}

	if len(p.Events) > 0 {
		section.Println("\nEvents")
		for _, v := range p.Events {
			fmt.Printf("  %s  [index %d]\n", v.Name, v.Index)
		}
	}

	if len(p.Errors) > 0 {
		section.Println("\nErrors")
		for _, v := range p.Errors {
			fmt.Printf("  %s  [index %d]\n", v.Name, v.Index)
		}
	}

	return nil
}
