package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/csvoracle-cli/internal/ai"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect the model catalog and pricing",
	Example: `  csvoracle models show
  csvoracle models show --provider ollama
  csvoracle models show --catalog ./models.json`,
}

var modelsCatalog string

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the model catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		if modelsCatalog != "" {
			m, err := ai.LoadCatalogFromJSON(modelsCatalog)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}
			ai.MergeCatalog(m)
		}
		provider := normalizeProvider(flagProvider)
		if provider != "" && !isProvider(provider) {
			return fmt.Errorf("unknown --provider: %s", flagProvider)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(ai.Catalog(provider))
	},
}

func isProvider(name string) bool {
	for _, p := range ai.Providers() {
		if p == name {
			return true
		}
	}
	return false
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsShowCmd.Flags().StringVar(&modelsCatalog, "catalog", os.Getenv("CSVORACLE_MODELS_CATALOG"), "JSON catalog file merged before showing")
}
