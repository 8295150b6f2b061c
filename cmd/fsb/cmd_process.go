package main

import (
	"github.com/spf13/cobra"

	"github.com/hlop3z/formsandbox/internal/cli"
)

// processCmd runs form logic without the host checks.
func processCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <form> <submission>",
		Short: "Run form logic over a submission",
		Long: `Run default values, calculated values, conditionals and validation rules of a
form over a submission, and print the resulting data and scope as JSON.

<form> is a form name from the forms directory or a definition file.
Unique and captcha checks are not run; use 'fsb validate' for those.`,
		Example: `  fsb process order submission.json
  fsb process ./forms/order.yaml - < submission.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := commandConfig()
			if err != nil {
				return err
			}
			client, err := newClient(cfg, dirExists(cfg.FormsDir))
			if err != nil {
				return err
			}
			defer client.Close()

			f, _, err := resolveForm(client, args[0])
			if err != nil {
				return err
			}
			sub, err := readSubmission(args[1])
			if err != nil {
				return err
			}
			res, err := client.Process(cmd.Context(), f, sub)
			if err != nil {
				return err
			}
			return cli.Default().PrintJSON(res)
		},
	}
	return cmd
}
