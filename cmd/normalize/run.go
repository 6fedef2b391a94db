package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/statements/internal/core"
	"github.com/JonMunkholm/statements/internal/extract"
	"github.com/JonMunkholm/statements/internal/fetch"
	"github.com/JonMunkholm/statements/internal/schemas"
	"github.com/JonMunkholm/statements/internal/tabular"
)

type runOptions struct {
	schemasFile string
	policy      string
	pretty      bool
	sheet       string
	pdftotext   string
	timeout     time.Duration
	maxBytes    int64
	strict      bool
}

func (c *cli) newRunCmd() *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run <file|url>",
		Short: "Normalize one document and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.schemasFile, "schemas", "s", "", "dynamic schema list (.json, .yaml or .toml)")
	cmd.Flags().StringVarP(&opts.policy, "policy", "p", string(core.CastFailFast), "cast policy: fail-fast or isolate")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "indent the JSON output")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "XLSX sheet to read (default: first sheet)")
	cmd.Flags().StringVar(&opts.pdftotext, "pdftotext", "pdftotext", "pdftotext binary")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", time.Minute, "overall timeout")
	cmd.Flags().Int64Var(&opts.maxBytes, "max-bytes", fetch.DefaultMaxBytes, "largest document accepted")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "exit non-zero when casting fails")
	return cmd
}

func (c *cli) run(ctx context.Context, location string, opts runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	policy, err := core.ParseCastPolicy(opts.policy)
	if err != nil {
		return err
	}

	var dynamic []core.SchemaDefinition
	if opts.schemasFile != "" {
		dynamic, err = schemas.Load(opts.schemasFile)
		if err != nil {
			return err
		}
	}

	fetcher := fetch.New(opts.timeout, opts.maxBytes, true)
	fetcher.Logger = c.logger

	pipelineOpts := []core.Option{
		core.WithFetcher(fetcher),
		core.WithCastPolicy(policy),
		core.WithLogger(c.logger),
	}
	pdf := extract.NewPDFText(opts.pdftotext, extract.ExecRunner{Logger: c.logger})
	if pdf.Available() {
		pipelineOpts = append(pipelineOpts, core.WithExtractor(pdf))
	}
	p := core.NewPipeline(tabular.Parser{Sheet: opts.sheet}, pipelineOpts...)

	result, err := p.RunSource(ctx, location, dynamic)
	if err != nil {
		return fmt.Errorf("%s: %w", location, err)
	}

	if err := c.writeJSON(result, opts.pretty); err != nil {
		return err
	}

	if result.CastErr != nil {
		fmt.Fprintf(c.errOut, "cast %s: %v\n", result.Cast, result.CastErr)
		if opts.strict {
			return fmt.Errorf("%s: %d records left uncast", location, result.RowCount())
		}
	}
	return nil
}

func (c *cli) writeJSON(v any, pretty bool) error {
	enc := json.NewEncoder(c.out)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
