package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/swagdesk/swagdesk/pkg/config"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "swagdesk",
		Short:   "Swagdesk — local workbench for Swagger/OpenAPI-documented HTTP APIs",
		Version: version,
	}

	root.AddCommand(
		newProjectCmd(),
		newDocsCmd(),
		newAnalyzeCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

const defaultConfigPath = "swagdesk.yaml"

// loadConfig reads the config file, falling back to defaults when the
// default path does not exist.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return config.Default(), nil
		}
	}
	return config.Load(path)
}
