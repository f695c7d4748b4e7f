package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danshapiro/courier/internal/ledger"
	"github.com/danshapiro/courier/internal/llm"
	"github.com/danshapiro/courier/internal/pipeline"
	"github.com/danshapiro/courier/internal/route"
	"github.com/danshapiro/courier/internal/workflow"
)

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func (a *app) accountant(c llm.Completer) *ledger.Accountant {
	return ledger.NewAccountant(&ledger.LLMExtractor{Completer: c, Sampling: a.sampling()}, ledger.WithLogger(a.logger))
}

func newRouteCmd(a *app) *cobra.Command {
	var router string
	var explain bool
	cmd := &cobra.Command{
		Use:   "route <request>",
		Short: "Classify a request and run the matching handler",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			def, err := a.catalog.Lookup(workflow.KindRouter, router)
			if err != nil {
				return err
			}
			c, err := a.oracle(ctx)
			if err != nil {
				return err
			}
			handlers := map[string]route.Handler{
				"ledger": route.HandlerFunc(a.accountant(c).ComputeTotal),
			}
			d, err := workflow.BuildRouter(def, c, a.sampling(), handlers, a.logger)
			if err != nil {
				return err
			}
			out, err := d.Route(ctx, joinArgs(args))
			if err != nil {
				return err
			}
			if explain {
				fmt.Fprintf(cmd.ErrOrStderr(), "label=%s fallback=%t raw=%q\n", out.Label, out.Fallback, out.Raw)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Output)
			return nil
		},
	}
	cmd.Flags().StringVar(&router, "router", "coordinator", "router workflow name")
	cmd.Flags().BoolVar(&explain, "explain", false, "print the routing decision to stderr")
	return cmd
}

func newLedgerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ledger <request>",
		Short: "Total the purchases described in a request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.oracle(cmd.Context())
			if err != nil {
				return err
			}
			out, err := a.accountant(c).ComputeTotal(cmd.Context(), joinArgs(args))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func newReflectCmd(a *app) *cobra.Command {
	var name string
	var showPartials bool
	cmd := &cobra.Command{
		Use:   "reflect <topic>",
		Short: "Draft, review, and revise a text about a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := a.catalog.Lookup(workflow.KindPipeline, name)
			if err != nil {
				return err
			}
			c, err := a.oracle(cmd.Context())
			if err != nil {
				return err
			}
			p, err := workflow.BuildPipeline(def, c, a.sampling(), a.logger)
			if err != nil {
				return err
			}
			r := &pipeline.Runner{AppName: a.settings.App, Pipeline: p, Logger: a.logger}
			if showPartials {
				r.OnPartial = func(ev pipeline.Event) {
					fmt.Fprintf(cmd.ErrOrStderr(), "[%s]\n%s\n\n", ev.Author, ev.Text())
				}
			}
			out, err := r.Run(cmd.Context(), a.settings.User, joinArgs(args))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "pipeline", "reflection", "pipeline workflow name")
	cmd.Flags().String("user", "", "user identifier for the run session")
	cmd.Flags().BoolVar(&showPartials, "show-partials", false, "print intermediate stage output to stderr")
	return cmd
}

func newCompleteCmd(a *app) *cobra.Command {
	var system string
	cmd := &cobra.Command{
		Use:   "complete <prompt>",
		Short: "Send a single prompt to the model and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.oracle(cmd.Context())
			if err != nil {
				return err
			}
			var msgs []llm.Message
			if strings.TrimSpace(system) != "" {
				msgs = append(msgs, llm.System(system))
			}
			msgs = append(msgs, llm.User(joinArgs(args)))
			out, err := llm.CompleteText(cmd.Context(), c, a.sampling().Request(msgs...))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "optional system instruction")
	return cmd
}

func newWorkflowsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "workflows",
		Short: "List the loaded router and pipeline definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tNAME\tSOURCE\tDESCRIPTION")
			for _, d := range a.catalog.Definitions() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Kind, d.Name, d.Source, d.Description)
			}
			return tw.Flush()
		},
	}
}
