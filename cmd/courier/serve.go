package main

import (
	"github.com/spf13/cobra"

	"github.com/danshapiro/courier/internal/pipeline"
	"github.com/danshapiro/courier/internal/route"
	"github.com/danshapiro/courier/internal/server"
	"github.com/danshapiro/courier/internal/workflow"
)

func newServeCmd(a *app) *cobra.Command {
	var addr, router, pipelineName string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve routing, ledger, and pipeline runs over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, err := a.oracle(ctx)
			if err != nil {
				return err
			}
			acct := a.accountant(c)
			handlers := map[string]route.Handler{"ledger": route.HandlerFunc(acct.ComputeTotal)}
			srv := server.New(server.Config{
				Addr:            addr,
				AppName:         a.settings.App,
				DefaultRouter:   router,
				DefaultPipeline: pipelineName,
				Routers: func(name string) (*route.Dispatcher, error) {
					def, err := a.catalog.Lookup(workflow.KindRouter, name)
					if err != nil {
						return nil, err
					}
					return workflow.BuildRouter(def, c, a.sampling(), handlers, a.logger)
				},
				Pipelines: func(name string) (*pipeline.Pipeline, error) {
					def, err := a.catalog.Lookup(workflow.KindPipeline, name)
					if err != nil {
						return nil, err
					}
					return workflow.BuildPipeline(def, c, a.sampling(), a.logger)
				},
				Ledger: acct,
				Logger: a.logger,
			})
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&router, "router", "coordinator", "default router workflow")
	cmd.Flags().StringVar(&pipelineName, "pipeline", "reflection", "default pipeline workflow")
	return cmd
}
