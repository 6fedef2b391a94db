package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	_ "github.com/JonMunkholm/statements/internal/core/providers" // Register all casters
	"github.com/JonMunkholm/statements/internal/logging"
)

// cli holds state shared by all subcommands.
type cli struct {
	out      io.Writer
	errOut   io.Writer
	logLevel string
	logJSON  bool
	logger   *slog.Logger
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize bank statements and order exports into provider-tagged JSON",
		Long: `normalize sniffs a document (CSV, XLSX or PDF), parses it into records,
detects which provider produced it and casts the fields of known providers
to typed values. Output is a JSON array on stdout; logs go to stderr.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			format := "text"
			if c.logJSON {
				format = "json"
			}
			c.logger = logging.New(c.errOut, c.logLevel, format)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&c.logJSON, "log-json", false, "write logs as JSON")

	root.AddCommand(
		c.newRunCmd(),
		c.newSniffCmd(),
		c.newProvidersCmd(),
		c.newSchemasCmd(),
	)
	return root
}
