package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hlop3z/formsandbox/internal/cli"
	"github.com/hlop3z/formsandbox/pkg/formsandbox"
)

// migrateCmd creates the store tables.
func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the store tables",
		Long: `Create the tables that back unique checks and captcha tokens.
Safe to run repeatedly.`,
		Example: `  fsb migrate --database-url ./forms.db
  FSB_DATABASE_URL=postgres://localhost/forms fsb migrate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := commandConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return formsandbox.ErrNoDatabase
			}
			client, err := newClient(cfg, false)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Migrate(cmd.Context()); err != nil {
				return err
			}
			if cli.Default().IsJSON() {
				return cli.Default().PrintJSON(map[string]any{"migrated": true})
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.FormatSuccess("store tables are up to date ("+MaskDatabaseURL(cfg.DatabaseURL)+")"))
			return nil
		},
	}
}

// dbURLMaskLength is how much of a database URL is shown.
const dbURLMaskLength = 32

// MaskDatabaseURL truncates a database URL for display.
func MaskDatabaseURL(url string) string {
	if len(url) > dbURLMaskLength {
		return url[:dbURLMaskLength] + "..."
	}
	return url
}
