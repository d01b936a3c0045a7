package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/goliatone/go-datatpl/internal/config"
	"github.com/goliatone/go-datatpl/internal/logging"
	"github.com/goliatone/go-datatpl/internal/prompt"
	"github.com/goliatone/go-datatpl/internal/watch"
	"github.com/goliatone/go-datatpl/pkg/pipeline"
	"github.com/goliatone/go-datatpl/pkg/record"
	"github.com/goliatone/go-datatpl/pkg/render/template/pongo"
)

// newRootCmd builds the datatpl command. driver answers --interactive
// prompts; nil selects the survey terminal driver.
func newRootCmd(driver prompt.Driver) *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "datatpl",
		Short: "Render a template against records from a CSV, JSON or YAML file",
		Long: `datatpl loads records from a data file and renders a template either
once per record (output0000.txt, output0001.txt, ...) or once for the whole
dataset (output.txt with --onefile). Records are exposed to the template as
the list "data".`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			configFile, err := cmd.Flags().GetString(config.KeyConfig)
			if err != nil {
				return err
			}
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			if driver == nil && cfg.Interactive {
				driver = prompt.NewSurveyDriver()
			}
			return run(cmd, cfg, driver)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func run(cmd *cobra.Command, cfg config.Config, driver prompt.Driver) error {
	ctx := cmd.Context()
	registry := record.DefaultRegistry()

	if cfg.Interactive {
		answered, err := prompt.Ask(ctx, driver, cfg, registry.Formats())
		if err != nil {
			return err
		}
		cfg = answered
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(cmd.ErrOrStderr(), logging.Options{
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevel,
		Verbose: cfg.Verbose,
	})

	options := []pipeline.Option{
		pipeline.WithRegistry(registry),
		pipeline.WithOutputDir(cfg.OutputDir),
		pipeline.WithLogger(logger),
	}
	if cfg.EnvFile != "" {
		options = append(options, pipeline.WithRendererOptions(pongo.WithEnvFile(cfg.EnvFile)))
	}
	runner := pipeline.New(options...)

	req := pipeline.Request{
		Template: cfg.Template,
		DataFile: cfg.DataFile,
		Format:   cfg.Format,
		Encoding: cfg.Encoding,
		OneFile:  cfg.OneFile,
	}

	if !cfg.Watch {
		_, err := runner.Run(ctx, req)
		return err
	}

	return watch.Watch(ctx, []string{cfg.Template, cfg.DataFile}, func(ctx context.Context) error {
		_, err := runner.Run(ctx, req)
		return err
	}, watch.WithLogger(logger))
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context, args []string) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCmd(nil)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}
