package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hlop3z/formsandbox/internal/cli"
	"github.com/hlop3z/formsandbox/internal/form"
	"github.com/hlop3z/formsandbox/pkg/formsandbox"
)

// formsCmd lists the forms directory.
func formsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forms",
		Short: "List the forms in the forms directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := commandConfig()
			if err != nil {
				return err
			}
			client, err := newClient(cfg, true)
			if err != nil {
				return err
			}
			defer client.Close()

			type row struct {
				Name       string `json:"name"`
				Title      string `json:"title,omitempty"`
				Components int    `json:"components"`
			}
			var rows []row
			for _, name := range client.Forms() {
				f, err := client.Form(name)
				if err != nil {
					return err
				}
				rows = append(rows, row{Name: name, Title: f.Title, Components: countComponents(f)})
			}

			if cli.Default().IsJSON() {
				return cli.Default().PrintJSON(rows)
			}
			t := cli.NewTable("NAME", "TITLE", "COMPONENTS")
			for _, r := range rows {
				t.AddRow(r.Name, r.Title, strconv.Itoa(r.Components))
			}
			fmt.Fprint(cmd.OutOrStdout(), t.String())
			fmt.Fprintln(cmd.OutOrStdout(), cli.Dim(cli.FormatCount(len(rows), "form", "forms")+" in "+cfg.FormsDir))
			return nil
		},
	}
}

func countComponents(f *formsandbox.Form) int {
	n := 0
	form.EachComponent(f.Components, func(*form.Component, string) bool {
		n++
		return true
	})
	return n
}
