package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hlop3z/formsandbox/internal/cli"
	"github.com/hlop3z/formsandbox/internal/lockfile"
)

// errLockMismatch reports a failed verification after its report was printed.
var errLockMismatch = errors.New("fsb.lock does not match")

// lockCmd manages fsb.lock.
func lockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Pin bundles and form definitions in fsb.lock",
		Long: `Manage fsb.lock.

The lock pins a hash of every dependency bundle and of every file in the forms
directory. Commit it next to fsb.yaml and run 'fsb lock verify' in CI or before
'fsb serve' to prove the deployment runs the reviewed code and forms.`,
	}

	cmd.AddCommand(lockWriteCmd())
	cmd.AddCommand(lockVerifyCmd())
	return cmd
}

var lockPath string

func computeLock() (*lockfile.LockFile, error) {
	cfg, err := commandConfig()
	if err != nil {
		return nil, err
	}
	client, err := newClient(cfg, false)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	fp, err := client.Fingerprint()
	if err != nil {
		return nil, err
	}
	return lockfile.Compute(fp, cfg.FormsDir)
}

func lockWriteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "write",
		Short:   "Write fsb.lock from the current bundles and forms",
		Example: `  fsb lock write`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lf, err := computeLock()
			if err != nil {
				return err
			}
			if err := lockfile.Write(lf, lockPath); err != nil {
				return err
			}
			if cli.Default().IsJSON() {
				return cli.Default().PrintJSON(map[string]any{"path": lockPath, "aggregate": lf.Aggregate, "entries": len(lf.Entries)})
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.FormatSuccess("wrote "+lockPath+" ("+cli.FormatCount(len(lf.Entries), "entry", "entries")+")"))
			return nil
		},
	}
	cmd.Flags().StringVar(&lockPath, "file", lockfile.DefaultPath(), "Lock file path")
	return cmd
}

func lockVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the bundles and forms against fsb.lock",
		Example: `  # Fail the build if anything drifted
  fsb lock verify`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lf, err := computeLock()
			if err != nil {
				return err
			}
			res, err := lockfile.Verify(lf, lockPath)
			if err != nil {
				return err
			}
			if cli.Default().IsJSON() {
				if err := cli.Default().PrintJSON(res); err != nil {
					return err
				}
			} else {
				printVerification(cmd.OutOrStdout(), res)
			}
			if !res.Valid {
				return errLockMismatch
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&lockPath, "file", lockfile.DefaultPath(), "Lock file path")
	return cmd
}

func printVerification(w io.Writer, res *lockfile.VerificationResult) {
	if !res.LockFileExists {
		fmt.Fprintln(w, cli.Error("error")+": "+lockPath+" not found")
		fmt.Fprintln(w, cli.Help("help")+": run "+cli.Code("fsb lock write"))
		return
	}
	section := func(label string, names []string, style func(string) string) {
		for _, n := range names {
			fmt.Fprintf(w, "  %s %s\n", style(label), n)
		}
	}
	section("modified", res.Modified, cli.Error)
	section("new     ", res.New, cli.Warning)
	section("removed ", res.Removed, cli.Warning)
	if res.Valid {
		fmt.Fprint(w, cli.FormatSuccess(cli.FormatCount(len(res.Verified), "entry", "entries")+" verified"))
		return
	}
	fmt.Fprintln(w, cli.Help("help")+": review the changes, then run "+cli.Code("fsb lock write"))
}
