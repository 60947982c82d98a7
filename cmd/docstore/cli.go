package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/docstore/docstore"
	"github.com/arthur-debert/docstore/formats"
	"github.com/arthur-debert/docstore/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// CLI is the viper-configured docstore command line
type CLI struct {
	rootCmd   *cobra.Command
	viperInst *viper.Viper
	level     *slog.LevelVar
	logger    *slog.Logger
}

// NewCLI builds the command tree
func NewCLI() *CLI {
	cli := &CLI{
		viperInst: viper.New(),
		level:     &slog.LevelVar{},
		logger:    slog.Default(),
	}
	cli.setupViperConfig()
	cli.createRootCommand()
	cli.addCommands()
	return cli
}

// Execute runs the command line with os.Args
func (cli *CLI) Execute() error {
	return cli.rootCmd.Execute()
}

func (cli *CLI) setupViperConfig() {
	cli.viperInst.SetDefault("data-dir", "data")
	cli.viperInst.SetDefault("format", "json")
	cli.viperInst.SetDefault("log-level", "warn")

	cli.viperInst.SetEnvPrefix("DOCSTORE")
	cli.viperInst.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cli.viperInst.AutomaticEnv()
}

// readConfig loads the config file named by --config or DOCSTORE_CONFIG,
// otherwise docstore.yaml from the working directory or ~/.docstore.
// Only an explicitly named file is required to exist.
func (cli *CLI) readConfig() error {
	if path := cli.viperInst.GetString("config"); path != "" {
		cli.viperInst.SetConfigFile(path)
		if err := cli.viperInst.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
		return nil
	}

	cli.viperInst.SetConfigName("docstore")
	cli.viperInst.SetConfigType("yaml")
	cli.viperInst.AddConfigPath(".")
	cli.viperInst.AddConfigPath("$HOME/.docstore")
	if err := cli.viperInst.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

func (cli *CLI) createRootCommand() {
	cli.rootCmd = &cobra.Command{
		Use:   "docstore",
		Short: "Query and maintain a docstore data directory",
		Long: `docstore reads and writes the JSON collection files of an embedded
document store. Each model is one <name>.json file in the data directory;
model descriptors (defaults, relations, text fields) come from a models file.

Configuration sources, highest precedence first:
  1. Command line flags
  2. Environment variables (DOCSTORE_DATA_DIR, DOCSTORE_MODELS, ...)
  3. Config file (--config, DOCSTORE_CONFIG, ./docstore.yaml, ~/.docstore/docstore.yaml)

Examples:
  docstore --data-dir ./data --models models.yaml find posts --filter '{"status":"published"}' --sort '-views'
  docstore aggregate posts --pipeline '[{"$group":{"_id":"$author","n":{"$sum":1}}}]'
  docstore export users --format yaml --out users.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.readConfig(); err != nil {
				return err
			}
			return cli.setupLogging(cmd.ErrOrStderr(), cli.viperInst.GetString("log-level"))
		},
	}

	flags := cli.rootCmd.PersistentFlags()
	flags.StringP("data-dir", "d", "data", "Directory holding the collection files")
	flags.StringP("models", "m", "", "Models file (defaults to <data-dir>/models.yaml when present)")
	flags.StringP("format", "f", "json", "Output format ("+strings.Join(formats.List(), "|")+")")
	flags.String("log-level", "warn", "Log level (debug|info|warn|error)")
	flags.String("config", "", "Config file path")

	for _, name := range []string{"data-dir", "models", "format", "log-level", "config"} {
		_ = cli.viperInst.BindPFlag(name, flags.Lookup(name))
	}
}

func (cli *CLI) addCommands() {
	cli.addFindCommand()
	cli.addCountCommand()
	cli.addAggregateCommand()
	cli.addUpdateCommand()
	cli.addDeleteCommand()
	cli.addSearchCommand()
	cli.addExportCommand()
	cli.addImportCommand()
	cli.addModelsCommand()
}

// openRegistry builds a registry over the configured data directory and
// defines the models of the models file
func (cli *CLI) openRegistry() (*docstore.Registry, error) {
	dataDir := cli.viperInst.GetString("data-dir")
	reg := docstore.NewRegistry(dataDir, docstore.WithLogger(cli.logger))

	modelsPath := cli.viperInst.GetString("models")
	if modelsPath == "" {
		candidate := filepath.Join(dataDir, "models.yaml")
		if _, err := os.Stat(candidate); err == nil {
			modelsPath = candidate
		}
	}
	if modelsPath != "" {
		if _, err := reg.DefineFromFile(modelsPath); err != nil {
			return nil, err
		}
		cli.logger.Debug("models loaded", "file", modelsPath, "models", reg.Models())
	}
	return reg, nil
}

// model returns the named model, defining a bare one for collections the
// models file does not describe
func (cli *CLI) model(reg *docstore.Registry, name string) (*docstore.Model, error) {
	if m, ok := reg.Model(name); ok {
		return m, nil
	}
	cli.logger.Debug("model not declared, using bare descriptor", "model", name)
	return reg.Define(types.ModelConfig{Name: name})
}

// withModel opens the registry, resolves the model and runs fn
func (cli *CLI) withModel(name string, fn func(ctx context.Context, m *docstore.Model) error) error {
	reg, err := cli.openRegistry()
	if err != nil {
		return err
	}
	defer func() { _ = reg.Close() }()

	m, err := cli.model(reg, name)
	if err != nil {
		return err
	}
	return fn(context.Background(), m)
}

func (cli *CLI) outputFormat() (*formats.Format, error) {
	return formats.Get(cli.viperInst.GetString("format"))
}

// render writes docs to w in the configured output format
func (cli *CLI) render(w io.Writer, docs []types.Document) error {
	format, err := cli.outputFormat()
	if err != nil {
		return err
	}
	return format.Encode(w, docs)
}
