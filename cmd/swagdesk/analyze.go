package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/swagdesk/swagdesk/pkg/optimizer"
)

func newAnalyzeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "analyze <sql>",
		Short: "Explain a query's plan against the local database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			db, err := sql.Open("sqlite", cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			o := optimizer.New(db, cfg.Query, nil)
			plan, err := o.AnalyzeQueryPlan(context.Background(), args[0])
			if err != nil {
				return err
			}

			fmt.Println("Plan:")
			for _, step := range plan.Steps {
				fmt.Printf("  %s\n", step.Detail)
			}
			fmt.Printf("Estimated cost: %.0f\n", plan.EstimatedCost)
			if plan.UsesIndex {
				fmt.Printf("Indexes used: %s\n", strings.Join(plan.IndexesUsed, ", "))
			}
			if len(plan.Recommendations) > 0 {
				fmt.Println("Recommendations:")
				for _, rec := range plan.Recommendations {
					fmt.Printf("  - %s\n", rec)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}
