package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/habiliai/docstore/api"
	"github.com/habiliai/docstore/tool"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	params := &struct {
		Host string
		Port int
	}{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tools over HTTP with an OpenAPI document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			conf, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				conf.Server.Host = params.Host
			}
			if cmd.Flags().Changed("port") {
				conf.Server.Port = params.Port
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
			handler, err := api.NewHandler(catalog, &conf.Server, logger, version)
			if err != nil {
				return err
			}

			addr := net.JoinHostPort(conf.Server.Host, strconv.Itoa(conf.Server.Port))
			logger.Info("server started", "addr", addr, "scraper", ds.ScraperEnabled())
			defer logger.Info("server stopped")

			server := &http.Server{
				Addr:              addr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
				BaseContext: func(l net.Listener) context.Context {
					return ctx
				},
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), conf.Store.CommitTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					logger.Error("failed to shutdown server", "err", err)
				}
			}()

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrapf(err, "failed to listen on %s", addr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&params.Host, "host", "", "Host to listen on (overrides server.host)")
	cmd.Flags().IntVarP(&params.Port, "port", "p", 0, "Port to listen on (overrides server.port)")

	return cmd
}
