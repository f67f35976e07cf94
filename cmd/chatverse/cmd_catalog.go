package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/chatverse/internal/catalog"
	"github.com/user/chatverse/internal/models"
)

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogValidateCmd, catalogModelsCmd, catalogAgentsCmd)
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the model and group agent catalog",
}

func loadCatalog() (*catalog.Catalog, error) {
	cfg := loadConfig()
	path, baseDir, err := catalogPaths(cfg)
	if err != nil {
		return nil, err
	}
	registry := models.NewDefaultRegistry(models.OpenAIProvider, models.ApproxCounter{})
	return catalog.Load(path, baseDir, registry)
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the catalog loads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadCatalog()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Catalog OK: %d models, %d group agents.\n", len(c.Models()), len(c.GroupAgents()))
		return nil
	},
}

var catalogModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the catalog models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadCatalog()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tNAME\tCLASS\tINHERITS")
		for _, m := range c.Models() {
			fmt.Fprintf(w, "%s\t%s\t%s.%s\t%s\n", m.Key, m.Name, m.LLMModelFile, m.LLMModelClass, m.InheritsFrom)
		}
		return w.Flush()
	},
}

var catalogAgentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the catalog group agents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadCatalog()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tNAME\tCHARACTERS\tINVESTMENT")
		for _, g := range c.GroupAgents() {
			fmt.Fprintf(w, "%s\t%s\t%d\t%g\n", g.Key, g.Name, len(g.Characters), g.Setting.Investment)
		}
		return w.Flush()
	},
}
