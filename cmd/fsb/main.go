// Package main provides fsb, the command line for formsandbox.
// fsb runs untrusted form logic in isolated sandboxes: it evaluates
// scripts, validates submissions against form definitions, renders
// templates and serves all of it over HTTP.
//
// Usage:
//
//	fsb eval <script>                # Evaluate a script in a fresh sandbox
//	fsb process <form> <submission>  # Run form logic over a submission
//	fsb validate <form> <submission> # Run the full validation pipeline
//	fsb render <template>            # Render a template
//	fsb forms                        # List forms in the forms directory
//	fsb bundles                      # List dependency bundles and hashes
//	fsb lock write|verify            # Pin bundles and forms in fsb.lock
//	fsb migrate                      # Create store tables
//	fsb serve                        # Start the HTTP server
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/hlop3z/formsandbox/internal/cli"
)

// version is set via ldflags during build: -ldflags="-X main.version=v1.0.0"
var version = "dev"

// Global flags
var (
	databaseURL string
	configFile  string
	formsDir    string
	jsonOutput  bool
	logLevel    string
)

// customHelp displays a styled help message for the root command.
func customHelp(cmd *cobra.Command) {
	categories := []CommandCategory{
		{
			Title: "Scripts",
			Commands: []CommandInfo{
				{"eval", "Evaluate a script in a fresh sandbox"},
				{"render", "Render a template with data"},
				{"bundles", "List dependency bundles and their hashes"},
				{"lock", "Pin bundles and forms in fsb.lock (write, verify)"},
			},
		},
		{
			Title: "Forms",
			Commands: []CommandInfo{
				{"forms", "List the forms in the forms directory"},
				{"process", "Run form logic over a submission"},
				{"validate", "Validate a submission (logic, unique, captcha)"},
			},
		},
		{
			Title: "Server",
			Commands: []CommandInfo{
				{"migrate", "Create the store tables"},
				{"serve", "Start the HTTP server"},
			},
		},
	}

	flags := []struct{ flag, desc string }{
		{"-c, --config", "Path to config file (default: fsb.yaml)"},
		{"-d, --database-url", "Store connection URL"},
		{"-f, --forms-dir", "Directory with form definitions"},
		{"    --json", "Print machine-readable JSON"},
		{"    --log-level", "debug, info, warn or error"},
		{"-h, --help", "Show help information"},
		{"-v, --version", "Show version information"},
	}

	renderCategoryHelp(
		"▣ fsb - Form Sandbox",
		"★  Untrusted form logic, safely evaluated",
		categories,
		flags,
	)
}

// setupLogging installs a tint handler on stderr.
func setupLogging(level string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      l,
			TimeFormat: time.Kitchen,
			NoColor:    !cli.EnableColors(),
		}),
	))
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "fsb",
		Short:         "Run untrusted form logic in isolated sandboxes",
		Long:          `fsb evaluates form scripts, validates submissions and renders templates inside fresh, resource-bounded JavaScript sandboxes.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				cli.SetDefault(cli.NewConfigWithMode(cli.ModeJSON, os.Stdout))
			}
			setupLogging(logLevel)
		},
	}

	// Set custom help function
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != rootCmd {
			fmt.Fprintln(cmd.OutOrStdout(), cmd.UsageString())
			return
		}
		customHelp(cmd)
	})

	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&databaseURL, "database-url", "d", "", "Store connection URL")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "fsb.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVarP(&formsDir, "forms-dir", "f", "", "Directory with form definitions")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print machine-readable JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level")

	// Add subcommands
	rootCmd.AddCommand(
		evalCmd(),
		renderCmd(),
		bundlesCmd(),
		formsCmd(),
		processCmd(),
		validateCmd(),
		migrateCmd(),
		serveCmd(),
		lockCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !handleClientError(err) {
			fmt.Fprint(os.Stderr, cli.FormatError(err))
		}
		os.Exit(1)
	}
}
