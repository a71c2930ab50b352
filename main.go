package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions carries the command line flags into the App.
type AppOptions struct {
	ConfigFile string
	InputFile  string
	Symbols    []string
	Budget     time.Duration
	Workers    int
	JSON       bool
	CN         int
	HttpPort   int
}

// Runner is the behavior the CLI dispatches to.
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunMatch(out io.Writer) error
	RunCatalog(out io.Writer) error
	RunService(out io.Writer) error
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		os.Exit(1)
	}
}

// run parses args and dispatches to app. Output and errors go to out.
func run(args []string, out io.Writer, app Runner) error {
	root := newRootCmd(out, app)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)
	return root.Execute()
}

func newRootCmd(out io.Writer, app Runner) *cobra.Command {
	var opts AppOptions

	root := &cobra.Command{
		Use:          "coordenv",
		Short:        "Identify coordination environments of atomic sites",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "Path to configuration file (defaults apply when empty)")

	matchCmd := &cobra.Command{
		Use:   "match",
		Short: "Rank reference geometries for every site in a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.InputFile == "" {
				return fmt.Errorf("--input is required")
			}
			app.ApplyOptions(opts)
			return app.RunMatch(out)
		},
	}
	matchCmd.Flags().StringVarP(&opts.InputFile, "input", "i", "", "JSON file with one site query or an array of them")
	matchCmd.Flags().StringSliceVar(&opts.Symbols, "symbols", nil, "Restrict matching to these geometry symbols")
	matchCmd.Flags().DurationVar(&opts.Budget, "budget", 0, "Soft time budget for the whole batch (e.g. 30s)")
	matchCmd.Flags().IntVar(&opts.Workers, "workers", 0, "Parallel site workers (overrides config)")
	matchCmd.Flags().BoolVar(&opts.JSON, "json", false, "Print results as JSON")

	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the reference geometries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.ApplyOptions(opts)
			return app.RunCatalog(out)
		},
	}
	catalogCmd.Flags().IntVar(&opts.CN, "cn", 0, "Only list geometries with this coordination number")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MQTT worker and HTTP server until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.ApplyOptions(opts)
			return app.RunService(out)
		},
	}
	serveCmd.Flags().IntVar(&opts.HttpPort, "http-port", 0, "HTTP server port (overrides config)")
	serveCmd.Flags().DurationVar(&opts.Budget, "budget", 0, "Soft time budget per batch")
	serveCmd.Flags().IntVar(&opts.Workers, "workers", 0, "Parallel site workers (overrides config)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(out, "coordenv version: %s\n", Version)
		},
	}

	root.AddCommand(matchCmd, catalogCmd, serveCmd, versionCmd)
	return root
}
