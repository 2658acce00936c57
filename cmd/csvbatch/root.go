package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"csvbatch/internal/config"
	"csvbatch/internal/log"
)

const runLongDescription = `Command "run"

Read Singer messages (SCHEMA, RECORD, STATE) from stdin or --input and write
each stream as compressed CSV batch files to the configured destination.
One JSON manifest per written chunk is printed to stdout.
`

const validateLongDescription = `Command "validate"

Lint the pipeline file. Warnings are printed but only errors fail the command.
`

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCommand(stdin io.Reader) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "csvbatch",
		Short:         "Encode Singer streams into compressed CSV batch files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "csvbatch.yaml", "pipeline config path (.yaml, .yml or .json)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose logs")

	root.AddCommand(runCommand(opts, stdin), validateCommand(opts))
	return root
}

func runCommand(opts *rootOptions, stdin io.Reader) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Batch Singer messages into CSV files",
		Long:  runLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := log.NewWithWriter(cmd.ErrOrStderr(), opts.verbose)
			defer func() { _ = logger.Sync() }()

			p, err := loadValid(opts.configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			in := stdin
			if input != "" && input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				in = f
			}

			flush, err := setupMetrics(p, logger)
			if err != nil {
				return err
			}
			defer flush()

			start := time.Now()
			logger.Debug("pipeline",
				zap.String("config", opts.configPath),
				zap.String("tap", p.Target.TapName),
				zap.String("destination", p.Destination.Kind),
				zap.String("compression", string(p.Compression.Type)),
				zap.Int("batch_size", p.BatchSize()),
			)

			if _, err := runStreamed(cmd.Context(), p, in, cmd.OutOrStdout(), logger); err != nil {
				return err
			}
			logger.Debug("completed", zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Singer messages file; stdin when empty or -")
	return cmd
}

func validateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the pipeline file",
		Long:  validateLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := loadValid(opts.configPath, cmd.ErrOrStderr()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid: %s\n", opts.configPath)
			return nil
		},
	}
}

// loadValid loads the pipeline file and prints every issue to w. It fails
// when any issue has error severity.
func loadValid(path string, w io.Writer) (config.Pipeline, error) {
	p, err := config.Load(path)
	if err != nil {
		return config.Pipeline{}, err
	}
	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if errs := config.Errors(issues); len(errs) > 0 {
		return config.Pipeline{}, errors.New("configuration is invalid: " + path)
	}
	return p, nil
}
