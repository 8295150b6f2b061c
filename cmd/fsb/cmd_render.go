package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hlop3z/formsandbox/internal/cli"
)

// renderCmd renders a template file.
func renderCmd() *cobra.Command {
	var dataFile, formArg string

	cmd := &cobra.Command{
		Use:   "render <template>",
		Short: "Render a template with data",
		Long: `Render a template inside a sandbox.

Templates use {{ expr }} interpolation, {% if %} and {% for x in xs %} blocks
and the filters upper, lower, date and default. With --form the template sees
form, data and metadata; otherwise it sees the keys of the data file.`,
		Example: `  # Render with plain data
  fsb render welcome.tpl --data user.json

  # Render a submission confirmation
  fsb render receipt.tpl --form order --data submission.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := commandConfig()
			if err != nil {
				return err
			}
			tpl, err := readInput(args[0])
			if err != nil {
				return err
			}

			client, err := newClient(cfg, formArg != "" && dirExists(cfg.FormsDir))
			if err != nil {
				return err
			}
			defer client.Close()

			var out string
			if formArg != "" {
				f, _, err := resolveForm(client, formArg)
				if err != nil {
					return err
				}
				sub, err := readSubmission(dataFile)
				if err != nil {
					return err
				}
				out, err = client.RenderSubmission(cmd.Context(), string(tpl), f, sub)
				if err != nil {
					return err
				}
			} else {
				data, err := readObject(dataFile)
				if err != nil {
					return err
				}
				if out, err = client.Render(cmd.Context(), string(tpl), data); err != nil {
					return err
				}
			}

			if cli.Default().IsJSON() {
				return cli.Default().PrintJSON(map[string]string{"output": out})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().StringVar(&dataFile, "data", "", "JSON or YAML data file")
	cmd.Flags().StringVar(&formArg, "form", "", "Form name or definition file")

	return cmd
}
