package cmd

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/optout-tools/optout/pkg/optout/config"
	"github.com/optout-tools/optout/pkg/optout/output"
	"github.com/optout-tools/optout/pkg/system"
)

type Config struct {
	ConfigPath   string
	OutputWriter io.Writer
	// LogWriter receives log lines; stderr when nil.
	LogWriter io.Writer
	Input     io.Reader
	// Context is the parent context, typically cancelled on SIGINT/SIGTERM.
	Context context.Context
}

type runtimeState struct {
	configPath   string
	cfg          *config.Config
	outputFormat string
	debug        bool
	writer       io.Writer
	logWriter    io.Writer
	log          *zap.SugaredLogger
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		ConfigPath:   config.DefaultConfigPath(),
		OutputWriter: os.Stdout,
		LogWriter:    os.Stderr,
		Input:        os.Stdin,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{configPath: cfg.ConfigPath, writer: cfg.OutputWriter, logWriter: cfg.LogWriter}

	root := newSendCommand()
	root.SilenceUsage = true
	root.SilenceErrors = true
	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if rt.writer == nil {
			rt.writer = os.Stdout
		}
		if rt.configPath == "" {
			rt.configPath = config.DefaultConfigPath()
		}
		if rt.outputFormat == "" {
			rt.outputFormat = os.Getenv("OPTOUT_OUTPUT")
		}
		if !rt.debug {
			rt.debug = strings.EqualFold(os.Getenv("OPTOUT_DEBUG"), "true")
		}
		rt.log = system.NewLogger(rt.debug, rt.logWriter)
		return nil
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to config file (JSON or YAML)")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format for listings: table, json, yaml")
	root.PersistentFlags().BoolVar(&rt.debug, "debug", false, "Enable debug logging")

	if cfg.Input != nil {
		root.SetIn(cfg.Input)
	}
	parent := cfg.Context
	if parent == nil {
		parent = context.Background()
	}
	root.SetContext(context.WithValue(parent, runtimeKey{}, rt))

	root.AddCommand(
		NewHistoryCommand(),
		NewCredentialCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) Logger() *zap.SugaredLogger {
	if rt.log == nil {
		rt.log = system.NewLogger(rt.debug, rt.logWriter)
	}
	return rt.log
}

func (rt *runtimeState) OutputFormat() (output.Format, error) {
	if rt.outputFormat != "" {
		return output.ParseFormat(rt.outputFormat)
	}
	if rt.cfg != nil {
		return output.ParseFormat(rt.cfg.Settings.OutputFormat)
	}
	return output.FormatTable, nil
}

func (rt *runtimeState) EnsureConfigLoaded() error {
	if rt.cfg != nil {
		return nil
	}
	cfg, err := config.Load(rt.configPath)
	if err != nil {
		return err
	}
	rt.cfg = cfg
	return nil
}

// configOrDefault is for commands that work without a config file, such as
// the broker listing. A present but broken file is still an error.
func (rt *runtimeState) configOrDefault() (*config.Config, error) {
	err := rt.EnsureConfigLoaded()
	if errors.Is(err, fs.ErrNotExist) {
		rt.Logger().Debugw("No config file, using defaults", "path", rt.configPath)
		def := config.DefaultConfig()
		rt.cfg = &def
		return rt.cfg, nil
	}
	return rt.cfg, err
}
