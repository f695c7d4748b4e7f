package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/danshapiro/courier/internal/llm"
	"github.com/danshapiro/courier/internal/llmclient"
	"github.com/danshapiro/courier/internal/logging"
	"github.com/danshapiro/courier/internal/settings"
	"github.com/danshapiro/courier/internal/workflow"
)

var version = "dev"

// app carries what the subcommands share once flags are parsed.
type app struct {
	v          *viper.Viper
	configFile string

	settings *settings.Settings
	logger   *zap.Logger
	catalog  *workflow.Catalog

	newCompleter func(ctx context.Context, s *settings.Settings, logger *zap.Logger) (llm.Completer, error)
	completer    llm.Completer
}

func newApp() *app {
	return &app{
		v: settings.New(),
		newCompleter: func(ctx context.Context, s *settings.Settings, logger *zap.Logger) (llm.Completer, error) {
			return llmclient.New(ctx, s, logger)
		},
	}
}

// flagKeys maps flag names to settings keys.
var flagKeys = map[string]string{
	"provider":    settings.KeyProvider,
	"model":       settings.KeyModel,
	"base-url":    settings.KeyBaseURL,
	"api-key":     settings.KeyAPIKey,
	"temperature": settings.KeyTemperature,
	"max-tokens":  settings.KeyMaxTokens,
	"log-level":   settings.KeyLogLevel,
	"log-format":  settings.KeyLogFormat,
	"workflows":   settings.KeyWorkflows,
	"user":        settings.KeyUser,
}

func newRootCmd(a *app, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "courier",
		Short: "Route requests and run reflection pipelines against a chat-completion model",
		Long: `courier classifies free-text requests and hands them to handlers, totals
expense reports, and runs write/review/revise pipelines.

Examples:
  courier route "Book me a flight to London"
  courier ledger "2 pencils at 2 each, 5 erasers at 1 each"
  courier reflect "a fairy tale about a little girl"
  courier complete "Say hello"`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Flags())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "settings file (default ./courier.yaml or $HOME/.config/courier/courier.yaml)")
	pf.String("provider", "", "provider key or alias (ark, openai, google)")
	pf.String("model", "", "model name (default: the provider's default model)")
	pf.String("base-url", "", "override the provider base URL")
	pf.String("api-key", "", "API key (default: the provider's key environment variable)")
	pf.Float64("temperature", 0, "sampling temperature in [0,2]")
	pf.Int("max-tokens", 0, "maximum tokens per completion")
	pf.String("log-level", "", "debug, info, warn, or error")
	pf.String("log-format", "", "console or json")
	pf.String("workflows", "", "directory searched for workflow definitions")

	root.AddCommand(
		newRouteCmd(a),
		newLedgerCmd(a),
		newReflectCmd(a),
		newCompleteCmd(a),
		newWorkflowsCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) setup(flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := a.v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	s, err := settings.Load(a.v, a.configFile)
	if err != nil {
		return &llm.ConfigurationError{Message: err.Error()}
	}
	a.settings = s

	logger, err := logging.New(s.LogLevel, s.LogFormat)
	if err != nil {
		return err
	}
	a.logger = logger

	catalog, err := workflow.Load(s.WorkflowsDir)
	if err != nil {
		return err
	}
	a.catalog = catalog
	return nil
}

// oracle builds the completion client on first use so commands that never
// call the model work without credentials.
func (a *app) oracle(ctx context.Context) (llm.Completer, error) {
	if a.completer != nil {
		return a.completer, nil
	}
	c, err := a.newCompleter(ctx, a.settings, a.logger)
	if err != nil {
		return nil, err
	}
	a.completer = c
	return c, nil
}

func (a *app) sampling() llm.Sampling {
	return llmclient.Sampling(a.settings)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return runApp(ctx, newApp(), args, stdout, stderr)
}

func runApp(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(a, stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCode(err)
	}
	return 0
}

// exitCode is 2 for usage and configuration problems, 1 for everything else.
func exitCode(err error) int {
	var ce *llm.ConfigurationError
	if errors.As(err, &ce) || isUsageError(err) {
		return 2
	}
	return 1
}

func isUsageError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag") ||
		strings.Contains(msg, "arg(s)")
}
