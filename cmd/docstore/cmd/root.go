package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/habiliai/docstore"
	"github.com/habiliai/docstore/config"
	"github.com/habiliai/docstore/internal/mylog"
	"github.com/spf13/cobra"
)

var version = "dev"

type rootFlags struct {
	ConfigFile string
	LogLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "docstore",
		Short:         "Versioned document and knowledge store for LLM tools",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.ConfigFile, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(flags),
		newMCPCmd(flags),
		newHistoryCmd(flags),
		newRevertCmd(flags),
	)

	return cmd
}

func (f *rootFlags) loadConfig() (*config.Config, error) {
	conf, err := config.Load(f.ConfigFile)
	if err != nil {
		return nil, err
	}
	if f.LogLevel != "" {
		conf.Log.LogLevel = f.LogLevel
	}
	return conf, nil
}

func (f *rootFlags) open(ctx context.Context, conf *config.Config) (*docstore.DocStore, error) {
	logger := mylog.NewLogger(conf.Log.LogLevel, conf.Log.LogHandler)
	logger.Debug("start docstore", "config", conf)

	return docstore.New(ctx, docstore.WithConfig(conf), docstore.WithLogger(logger))
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %+v\n", err)
		os.Exit(1)
	}
}
