package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/habiliai/docstore/tool"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

func newMCPCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the tools over MCP on stdin and stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			conf, err := flags.loadConfig()
			if err != nil {
				return err
			}
			ds, err := flags.open(ctx, conf)
			if err != nil {
				return err
			}
			defer ds.Close()
			logger := ds.Logger()

			catalog, err := tool.NewCatalog(ds, logger)
			if err != nil {
				return err
			}

			stdio := server.NewStdioServer(tool.NewMCPServer(catalog, version))
			stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))

			logger.Info("mcp server started", "tools", len(catalog.Tools()))
			defer logger.Info("mcp server stopped")

			if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}
