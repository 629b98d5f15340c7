package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/finassist/internal/server"
	"github.com/mohammad-safakhou/finassist/market"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			store, err := a.sessionStore()
			if err != nil {
				return err
			}
			addr := a.cfg.Server.Address
			if serveAddr != "" {
				addr = serveAddr
			}

			deps := server.Deps{
				Sessions:       store,
				SessionTTL:     a.cfg.General.SessionTTL,
				Aggregator:     a.aggregator,
				Indicators:     market.Indicators{Source: a.market},
				Commodities:    a.market,
				News:           a.news,
				Chat:           a.responder,
				IndexBuilder:   a.builder,
				DocumentFolder: a.cfg.Documents.Folder,
				BuildOnStart:   a.cfg.Documents.BuildOnStart,
			}
			if a.registry != nil {
				deps.Gatherer = a.registry
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Run(ctx, addr, deps)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.address)")
	return serve
}
