package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sitelens/backend/internal/app"
	"github.com/sitelens/backend/internal/domain"
)

func newAnalyzeCmd(r *runner) *cobra.Command {
	var category, locationID string

	cmd := &cobra.Command{
		Use:     "analyze",
		Short:   "Profile the target customers of a category at a location",
		Example: "  sitelens analyze --category cafe --location gn-002",
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *app.App) error {
				analysis, err := a.Service.TargetCustomerAnalysis(ctx, domain.Category(category), locationID)
				if err != nil {
					return err
				}
				return r.print(cmd.OutOrStdout(), analysis)
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "business category [REQUIRED]")
	cmd.Flags().StringVar(&locationID, "location", "", "location id [REQUIRED]")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("location")

	return cmd
}

func newRecommendCmd(r *runner) *cobra.Command {
	var (
		category    string
		budget      float64
		demographic string
		area        string
		topK        int
	)

	cmd := &cobra.Command{
		Use:     "recommend",
		Short:   "Rank candidate locations for a new business",
		Example: "  sitelens recommend --category cafe --budget 50000000 --demographic 30s --area gangnam --top-k 5",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("top-k") {
				topK = r.cfg.Scoring.DefaultTopK
			}
			if topK < 0 {
				return fmt.Errorf("%w: top-k must not be negative", domain.ErrInvalidRequest)
			}
			topK = min(topK, r.cfg.Scoring.MaxTopK)

			return r.withApp(cmd, func(ctx context.Context, a *app.App) error {
				rec, err := a.Service.OptimalLocationRecommendation(ctx, domain.RecommendationRequest{
					Category:    domain.Category(category),
					Budget:      budget,
					Demographic: demographic,
					Area:        area,
					TopK:        topK,
				})
				if err != nil {
					return err
				}
				if rec.Narrative.Degraded {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", domain.ErrNarrativeDegraded)
				}
				return r.print(cmd.OutOrStdout(), rec)
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "business category [REQUIRED]")
	cmd.Flags().Float64Var(&budget, "budget", 0, "opening budget, same unit as location costs [REQUIRED]")
	cmd.Flags().StringVar(&demographic, "demographic", "", "target segment, e.g. 30s (default: each location's dominant segment)")
	cmd.Flags().StringVar(&area, "area", "", "restrict candidates to one area (default: all areas)")
	cmd.Flags().IntVar(&topK, "top-k", 0, "number of locations to return (default: scoring.default_top_k)")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("budget")

	return cmd
}

func newCategoriesCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List registered categories and their demand weights",
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *app.App) error {
				return r.print(cmd.OutOrStdout(), map[string]interface{}{
					"categories":   a.Service.Categories(),
					"scoreWeights": a.Service.ScoreWeights(),
				})
			})
		},
	}
}

func newSeedCmd(r *runner) *cobra.Command {
	var fixture string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a location fixture into the configured Elasticsearch index or Postgres table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), r.opts.Timeout)
			defer cancel()

			n, err := app.Seed(ctx, r.cfg, fixture, r.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d locations into %s\n", n, r.cfg.Dataset.Type)
			return nil
		},
	}

	cmd.Flags().StringVar(&fixture, "file", "data/locations.json", "JSON location fixture")

	return cmd
}
