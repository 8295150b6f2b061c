package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hlop3z/formsandbox/internal/cli"
	"github.com/hlop3z/formsandbox/pkg/formsandbox"
)

// validateCmd runs the full submission pipeline.
func validateCmd() *cobra.Command {
	var commit bool
	var submissionID, token string

	cmd := &cobra.Command{
		Use:   "validate <form> <submission>",
		Short: "Validate a submission (logic, unique, captcha)",
		Long: `Validate a submission the way the server does: structural checks, data source
fetches, form logic, unique values and captcha tokens.

Field errors are printed in form order and the command exits 1. With --commit
an accepted submission's unique values are recorded in the store.`,
		Example: `  # Check a submission
  fsb validate signup submission.json

  # Accept and record unique values
  fsb validate signup submission.json --commit --submission-id 42`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := commandConfig()
			if err != nil {
				return err
			}
			if commit && cfg.DatabaseURL == "" {
				return formsandbox.ErrNoDatabase
			}
			client, err := newClient(cfg, dirExists(cfg.FormsDir))
			if err != nil {
				return err
			}
			defer client.Close()

			f, name, err := resolveForm(client, args[0])
			if err != nil {
				return err
			}
			sub, err := readSubmission(args[1])
			if err != nil {
				return err
			}

			req := formsandbox.ValidateRequest{
				FormName:     name,
				Form:         f,
				Submission:   sub,
				SubmissionID: submissionID,
				Token:        token,
			}
			out, err := client.Validate(cmd.Context(), req)
			if err == nil && commit {
				err = client.Commit(cmd.Context(), req, out)
			}
			var ve *formsandbox.ValidationError
			if errors.As(err, &ve) {
				if cli.Default().IsJSON() {
					if err := cli.Default().PrintJSON(map[string]any{"valid": false, "details": ve.Details}); err != nil {
						return err
					}
				} else {
					fmt.Fprint(cmd.ErrOrStderr(), cli.FormatFieldErrors(ve.Details))
				}
				return errRejected
			}
			if err != nil {
				return err
			}

			if cli.Default().IsJSON() {
				result := map[string]any{"valid": true, "data": out.Data}
				if commit {
					result["submissionId"] = out.SubmissionID
				}
				return cli.Default().PrintJSON(result)
			}
			msg := "submission is valid"
			if commit {
				msg += " (recorded as " + out.SubmissionID + ")"
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.FormatSuccess(msg))
			return nil
		},
	}

	cmd.Flags().BoolVar(&commit, "commit", false, "Record unique values of an accepted submission")
	cmd.Flags().StringVar(&submissionID, "submission-id", "", "ID of the submission being updated")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token forwarded to data sources")

	return cmd
}
