// Package cli implements the clauselens command line.
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/clauselens/internal/config"
	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/clauselens/pkg/client"
	"github.com/turtacn/clauselens/pkg/errors"
)

// BuildInfo is injected at build time through ldflags in main.
type BuildInfo struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildDate string `json:"build_date" yaml:"build_date"`
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", b.Version, b.Commit, b.BuildDate)
}

// skipConfig marks commands that run without loading configuration.
const skipConfig = "skip-config"

type cliContextKey struct{}

// RootOptions holds the global flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	NoColor      bool
	Timeout      time.Duration
	ServerAddr   string
}

// CLIContext carries loaded dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	Loader       *config.Loader
	Logger       logging.Logger
	OutputFormat string
	Timeout      time.Duration
	ServerAddr   string
}

// NewRootCommand builds the command tree.
func NewRootCommand(info BuildInfo) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "clauselens",
		Short: "Structured profiles of legal and regulatory documents",
		Long: "clauselens turns token-classification output over a legal document into a\n" +
			"structured profile: clauses by section, dates with roles, topics and quality\n" +
			"signals, and a refined view with clauses bucketed by meaning.",
		Version: info.String(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (defaults and CLAUSELENS_* env when empty)")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "text", "output format (text, json)")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.DurationVar(&opts.Timeout, "timeout", 2*time.Minute, "overall command timeout")
	pf.StringVar(&opts.ServerAddr, "server", "", "clauselens API address; commands run locally when empty")

	cmd.AddCommand(
		newProfileCmd(),
		newRefineCmd(),
		newJobCmd(),
		newSearchCmd(),
		newConfigCmd(),
		newVersionCmd(info),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	if opts.NoColor {
		color.NoColor = true
	}
	switch strings.ToLower(opts.OutputFormat) {
	case "text", "json":
	default:
		return errors.InvalidParam("output must be text or json").WithDetail(opts.OutputFormat)
	}
	if !logging.IsValidLevel(opts.LogLevel) {
		return errors.InvalidParam("invalid log level").WithDetail(opts.LogLevel)
	}

	cc := &CLIContext{
		OutputFormat: strings.ToLower(opts.OutputFormat),
		Timeout:      opts.Timeout,
		ServerAddr:   opts.ServerAddr,
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:            opts.LogLevel,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "logger initialization failed")
	}
	cc.Logger = logger

	if cmd.Annotations[skipConfig] != "true" {
		loader, err := config.NewLoader(opts.ConfigPath)
		if err != nil {
			return err
		}
		cfg, err := loader.Config()
		if err != nil {
			return err
		}
		cc.Loader, cc.Config = loader, cfg
	}

	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))
	return nil
}

// GetCLIContext returns the context stored by the root pre-run hook.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.Internal("command context is nil")
	}
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cc == nil {
		return nil, errors.Internal("cli context not initialized")
	}
	return cc, nil
}

// commandContext bounds a command by the global --timeout.
func (cc *CLIContext) commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	if cc.Timeout <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), cc.Timeout)
}

// apiClient builds an SDK client for --server.
func (cc *CLIContext) apiClient() (*client.Client, error) {
	if cc.ServerAddr == "" {
		return nil, errors.InvalidParam("this command needs --server")
	}
	return client.NewClient(cc.ServerAddr, client.WithTimeout(cc.Timeout))
}

// Execute runs the CLI and prints any error to stderr.
func Execute(info BuildInfo) error {
	root := NewRootCommand(info)
	if err := root.Execute(); err != nil {
		PrintError(root, err)
		return err
	}
	return nil
}
