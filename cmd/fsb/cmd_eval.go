package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hlop3z/formsandbox/internal/cli"
	"github.com/hlop3z/formsandbox/pkg/formsandbox"
)

// evalCmd evaluates one script in a fresh sandbox.
func evalCmd() *cobra.Command {
	var expr, dataFile string
	var deps []string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "eval [script]",
		Short: "Evaluate a script in a fresh sandbox",
		Long: `Evaluate a script in a fresh sandbox and print its completion value as JSON.

The keys of the data file become script globals. By default the form processing
bundles are loaded first; use --deps to choose others (--deps "" for none).`,
		Example: `  # Evaluate an expression
  fsb eval -e "_.sum([1, 2, 3])"

  # Evaluate a file with globals from data.json
  fsb eval script.js --data data.json

  # Use only the date library
  fsb eval -e "moment('2024-01-01').add(1, 'day').format()" --deps date-library`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := commandConfig()
			if err != nil {
				return err
			}
			code := expr
			if len(args) == 1 {
				src, err := readInput(args[0])
				if err != nil {
					return err
				}
				code = string(src)
			}
			if strings.TrimSpace(code) == "" {
				return cmd.Usage()
			}
			data, err := readObject(dataFile)
			if err != nil {
				return err
			}

			client, err := newClient(cfg, false)
			if err != nil {
				return err
			}
			defer client.Close()

			req := formsandbox.EvaluateRequest{Data: data, Code: code, Timeout: timeout}
			if cmd.Flags().Changed("deps") {
				req.Deps = nonEmpty(deps)
			}
			out, err := client.Evaluate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return cli.Default().PrintJSON(out)
		},
	}

	cmd.Flags().StringVarP(&expr, "expr", "e", "", "Script source given inline")
	cmd.Flags().StringVar(&dataFile, "data", "", "JSON or YAML file whose keys become globals")
	cmd.Flags().StringSliceVar(&deps, "deps", nil, "Bundles to load, in order")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Override the evaluation timeout")

	return cmd
}

func nonEmpty(in []string) []string {
	out := []string{}
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
