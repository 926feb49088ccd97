package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/swagdesk/swagdesk/pkg/project"
)

func newProjectCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage API projects",
	}

	var baseURL string
	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			repo, err := project.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer repo.Close()

			p, err := repo.Create(context.Background(), args[0], baseURL)
			if err != nil {
				return err
			}
			fmt.Printf("Created project %s (%s)\n", p.Name, p.ID)
			return nil
		},
	}
	addCmd.Flags().StringVar(&baseURL, "base-url", "", "base URL of the API under test")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			repo, err := project.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer repo.Close()

			all, err := repo.List(context.Background())
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Println("No projects.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tBASE URL\tCREATED")
			for _, p := range all {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					p.ID, p.Name, p.BaseURL, p.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	rmCmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			repo, err := project.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.Delete(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Println("Project deleted.")
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.AddCommand(addCmd, listCmd, rmCmd)
	return cmd
}
