package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"github.com/gdw-platform/gdw-audit/internal/config"
	"github.com/gdw-platform/gdw-audit/internal/domain"
	"github.com/gdw-platform/gdw-audit/internal/observability"
	"github.com/gdw-platform/gdw-audit/internal/temporal/codecs"
	"github.com/gdw-platform/gdw-audit/internal/temporal/querier"
)

// errVerdict signals a completed command whose outcome should exit 1.
var errVerdict = errors.New("verdict")

// app carries the resolved configuration shared by every subcommand.
type app struct {
	cfg    config.Config
	output string
	stdout io.Writer
	logger *slog.Logger

	// dial connects to Temporal. Tests replace it.
	dial func(cfg config.Config) (querier.AuditQuerier, func(), error)
}

func execute(args []string, stdout, stderr io.Writer) int {
	return executeApp(&app{dial: dialTemporal}, args, stdout, stderr)
}

func executeApp(a *app, args []string, stdout, stderr io.Writer) int {
	a.stdout = stdout
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errVerdict):
		return 1
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
}

func newRootCmd(a *app) *cobra.Command {
	var (
		registry string
		env      string
		logLevel string
	)

	root := &cobra.Command{
		Use:           "gdw-audit",
		Short:         "Reconcile warehouse tables and report the differences",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("registry") {
				cfg.RegistryPath = registry
			}
			if cmd.Flags().Changed("env") {
				e, err := domain.ParseEnvironment(env)
				if err != nil {
					return err
				}
				cfg.Environment = e
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if a.output != "table" && a.output != "json" {
				return fmt.Errorf("unknown output format %q (must be table or json)", a.output)
			}
			a.cfg = cfg
			a.logger = observability.InitLoggerTo(cmd.ErrOrStderr(), cfg.LogLevel)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&registry, "registry", "", "table registry YAML (default $AUDIT_REGISTRY)")
	root.PersistentFlags().StringVar(&env, "env", "", "environment to audit (default $AUDIT_ENVIRONMENT)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (default $AUDIT_LOG_LEVEL)")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "table", "output format (table, json)")

	root.AddCommand(
		newRunCmd(a),
		newTriggerCmd(a),
		newSweepCmd(a),
		newStatusCmd(a),
		newReportCmd(a),
		newListCmd(a),
		newDiffCmd(a),
		newValidateCmd(a),
	)
	return root
}

func (a *app) registry() (config.Registry, error) {
	reg, err := config.LoadRegistry(a.cfg.RegistryPath)
	if err != nil {
		return config.Registry{}, fmt.Errorf("load registry: %w", err)
	}
	return reg, nil
}

func (a *app) entry(name string) (config.TableEntry, error) {
	reg, err := a.registry()
	if err != nil {
		return config.TableEntry{}, err
	}
	e, ok := reg.Lookup(name)
	if !ok {
		return config.TableEntry{}, fmt.Errorf("registry has no table %q", name)
	}
	return e, nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func dialTemporal(cfg config.Config) (querier.AuditQuerier, func(), error) {
	c, err := client.DialContext(context.Background(), client.Options{
		HostPort:      cfg.TemporalHostPort,
		Namespace:     cfg.TemporalNamespace,
		Logger:        observability.NewTemporalSlogAdapter(slog.Default()),
		DataConverter: codecs.NewDataConverter(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create Temporal client: %w", err)
	}
	return querier.New(c), c.Close, nil
}
