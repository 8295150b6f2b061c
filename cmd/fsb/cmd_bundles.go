package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hlop3z/formsandbox/internal/cli"
)

// bundlesCmd lists the dependency bundles and their content hashes.
func bundlesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bundles",
		Short: "List dependency bundles and their hashes",
		Long: `List the dependency bundles scripts can load, with a content hash per bundle
and a merkle root over all of them. Two builds with the same root run
byte-identical library code.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := commandConfig()
			if err != nil {
				return err
			}
			client, err := newClient(cfg, false)
			if err != nil {
				return err
			}
			defer client.Close()

			fp, err := client.Fingerprint()
			if err != nil {
				return err
			}
			if cli.Default().IsJSON() {
				return cli.Default().PrintJSON(map[string]any{"root": fp.Root, "bundles": fp.Bundles})
			}

			t := cli.NewTable("BUNDLE", "HASH")
			for _, name := range client.Bundles() {
				t.AddRow(name, short(fp.Bundles[name]))
			}
			fmt.Fprint(cmd.OutOrStdout(), t.String())
			fmt.Fprintln(cmd.OutOrStdout(), cli.Dim("root "+fp.Root))
			return nil
		},
	}
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
