package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/graph"
)

func edgesCmd() *cobra.Command {
	var source, target, relation string

	cmd := &cobra.Command{
		Use:   "edges",
		Short: "Show one materialized edge with its evidence",
		RunE: func(cmd *cobra.Command, args []string) error {
			rel, err := graph.ParseRelation(relation)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			app, err := NewApp(ctx, appOptions{LogOutput: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer app.Shutdown()

			e, err := app.Stores().Edges.Find(ctx, graph.EdgeID(source, target, rel))
			if err != nil {
				return fmt.Errorf("edge %s -[%s]-> %s: %w", source, rel, target, err)
			}
			return writeJSON(cmd.OutOrStdout(), e)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Source node id (company id)")
	cmd.Flags().StringVar(&target, "target", "", "Target node id (taxonomy code, entity type or driver)")
	cmd.Flags().StringVar(&relation, "relation", string(graph.RelationBelongsToSector), "Relation")
	cmd.MarkFlagRequired("source")
	cmd.MarkFlagRequired("target")

	return cmd
}
