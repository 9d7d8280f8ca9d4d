package commands

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/palletbridge/palletbridge/internal/cli/config"
	"github.com/palletbridge/palletbridge/metadata"
	"github.com/palletbridge/palletbridge/rpc"
)

// loadSnapshot resolves a metadata snapshot for a command: from a local
// blob file when --file is set, otherwise from the configured node.
// The cleanup function closes the node connection when one was opened.
func loadSnapshot(cmd *cobra.Command) (*metadata.Metadata, func(), error) {
	noop := func() {}

	if file, _ := cmd.Flags().GetString("file"); file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, noop, err
		}
		// Hex dumps (as served by RPC tools) are accepted alongside
		// raw binary blobs.
		if trimmed := strings.TrimSpace(string(raw)); strings.HasPrefix(trimmed, "0x") {
			raw, err = hex.DecodeString(trimmed[2:])
			if err != nil {
				return nil, noop, fmt.Errorf("malformed hex in %s: %w", file, err)
			}
		}
		m, err := metadata.Decode(raw)
		return m, noop, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, noop, err
	}
	url := cfg.Node.URL
	if override, _ := cmd.Flags().GetString("url"); override != "" {
		url = override
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Node.Timeout())
	defer cancel()

	node, err := rpc.NewNode(ctx, url)
	if err != nil {
		return nil, noop, err
	}
	raw, err := node.FetchMetadata(ctx)
	if err != nil {
		node.Close()
		return nil, noop, err
	}
	m, err := metadata.Decode(raw)
	if err != nil {
		node.Close()
		return nil, noop, err
	}
	return m, func() { node.Close() }, nil
}

// connectNode opens a node connection using the configured URL and the
// command's --url override.
func connectNode(cmd *cobra.Command) (*rpc.Node, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	url := cfg.Node.URL
	if override, _ := cmd.Flags().GetString("url"); override != "" {
		url = override
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Node.Timeout())
	defer cancel()
	node, err := rpc.NewNode(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	return node, cfg, nil
}
