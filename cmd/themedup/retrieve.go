package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/cognicore/themedup/internal/records"
	"github.com/cognicore/themedup/pkg/themedup/retrieve"
)

func newRetrieveCmd(a *app) *cobra.Command {
	var (
		insightsPath string
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Rank stored insights against a query",
		Long: `Ranks insights from --insights, or the themes registered under --scope
when no file is given, by semantic similarity to the query. Falls back to
confidence ranking when embeddings are unavailable.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := strings.Join(args, " ")

			pool := retrieve.NewPool()
			if insightsPath != "" {
				insights, err := records.LoadInsights(insightsPath, a.logger)
				if err != nil {
					return err
				}
				pool.Add(insights...)
			} else {
				reg, closeStore, err := a.openRegistry(ctx)
				if err != nil {
					return err
				}
				for _, th := range reg.Themes() {
					pool.Add(retrieve.FromTheme(th))
				}
				closeStore()
			}

			engine, err := a.engine()
			if err != nil {
				return err
			}
			if adapter := engine.Adapter(); adapter != nil && !pool.Ready() {
				pool.Index(ctx, adapter)
			}

			resp := engine.Retriever(pool).Retrieve(ctx, query, limit)
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&insightsPath, "insights", "", "JSONL file of insights")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Max results (config retrieval_limit when 0)")
	return cmd
}
