package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/jarvis-tasks/jarvis/internal/config"
	"github.com/jarvis-tasks/jarvis/internal/depgraph"
	"github.com/jarvis-tasks/jarvis/internal/store/supabase"
	"github.com/jarvis-tasks/jarvis/internal/ui"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:     "graph",
	Short:   "Show the dependency graph",
	GroupID: "graph",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		g, err := tasksClient.Graph(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("getting graph: %w", err)
		}
		if jsonOutput {
			return printJSON(g)
		}

		titles := make(map[string]string, len(g.Nodes))
		for _, n := range g.Nodes {
			titles[n.ID] = n.Title
		}
		deps := make(map[string][]string)
		for _, e := range g.Edges {
			deps[e.Source] = append(deps[e.Source], e.Target)
		}
		ids := make([]string, 0, len(deps))
		for id := range deps {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		if len(ids) == 0 {
			fmt.Fprintln(stdout, "No dependencies.")
			return nil
		}
		for _, id := range ids {
			fmt.Fprintf(stdout, "%s %s %s\n", id, ui.RenderMuted(fmt.Sprintf("(depth %d)", g.Depth[id])), ui.Truncate(titles[id], 50))
			targets := deps[id]
			sort.Strings(targets)
			for _, t := range targets {
				fmt.Fprintf(stdout, "  └─ %s %s\n", t, ui.Truncate(titles[t], 50))
			}
		}
		return nil
	},
}

var graphAuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Scan the stored graph for cycles and report its depth",
	Long: `Reads every dependency edge straight from the database and checks it.

By default the store from the server configuration is used. Pass --dsn (or set
JARVIS_SUPABASE_DSN) to audit a hosted Supabase database instead.`,
	Args:              cobra.NoArgs,
	PersistentPreRunE: skipClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

		dsn, _ := cmd.Flags().GetString("dsn")
		if dsn == "" {
			dsn = os.Getenv("JARVIS_SUPABASE_DSN")
		}

		var backend depgraph.Backend
		if dsn != "" {
			g, err := supabase.Open(ctx, dsn)
			if err != nil {
				return err
			}
			defer g.Close()
			backend = g
		} else {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			backend = s
		}

		audit, err := depgraph.New(backend, depgraph.WithLogger(logger)).Audit(ctx)
		if err != nil {
			return fmt.Errorf("auditing graph: %w", err)
		}
		if jsonOutput {
			if err := printJSON(audit); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(stdout, "Tasks with edges: %d\n", audit.Tasks)
			fmt.Fprintf(stdout, "Edges:            %d\n", audit.Edges)
			if len(audit.Cycle) == 0 {
				fmt.Fprintf(stdout, "Max depth:        %d", audit.MaxDepth)
				if audit.Deepest != "" {
					fmt.Fprintf(stdout, " (%s)", audit.Deepest)
				}
				fmt.Fprintln(stdout)
			}
		}
		if len(audit.Cycle) > 0 {
			if !jsonOutput {
				fmt.Fprintln(stdout, ui.RenderError("Cycle found:"))
				fmt.Fprintf(stdout, "  %s\n", strings.Join(audit.Cycle, " -> "))
			}
			return errors.New("dependency graph contains a cycle")
		}
		return nil
	},
}

func init() {
	graphCmd.Flags().Int("limit", 0, "maximum number of tasks to include")
	graphAuditCmd.Flags().String("dsn", "", "Supabase Postgres connection string")
	graphCmd.AddCommand(graphAuditCmd)
}
