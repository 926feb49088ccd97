package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/swagdesk/swagdesk/pkg/swagcache"
)

func newDocsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Manage cached Swagger documents",
	}

	openManager := func() (*swagcache.Manager, error) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return nil, err
		}
		return swagcache.New(cfg.DBPath, cfg.Swagger.Expiry, nil)
	}

	listCmd := &cobra.Command{
		Use:   "list <project-id>",
		Short: "List cached document versions for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			docs, err := m.Versions(context.Background(), args[0])
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				fmt.Println("No cached documents.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tVERSION\tAPIS\tCACHED\tEXPIRES\tCURRENT")
			for _, d := range docs {
				current := ""
				if d.IsCurrent {
					current = "*"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
					d.ID, d.Title, d.Version, d.APICount,
					d.CachedAt.Format("2006-01-02 15:04"),
					d.ExpiresAt.Format("2006-01-02 15:04"), current)
			}
			return w.Flush()
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show document store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			st, err := m.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Documents: %d\nCurrent:   %d\nEndpoints: %d\n", st.Documents, st.Current, st.APIs)
			return nil
		},
	}

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired historical documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			removed, err := m.CleanupExpiredDocuments(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d expired document(s).\n", removed)
			return nil
		},
	}

	var docID int64
	currentCmd := &cobra.Command{
		Use:   "set-current <project-id>",
		Short: "Make a historical document version current again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			if err := m.SetCurrent(context.Background(), args[0], docID); err != nil {
				return err
			}
			fmt.Printf("Document %d is now current.\n", docID)
			return nil
		},
	}
	currentCmd.Flags().Int64Var(&docID, "id", 0, "document id to promote")
	_ = currentCmd.MarkFlagRequired("id")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.AddCommand(listCmd, statsCmd, cleanupCmd, currentCmd)
	return cmd
}
