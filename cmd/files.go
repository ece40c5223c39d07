package cmd

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/csvoracle-cli/internal/archive"
)

var filesJSON bool

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List the CSV files in the loaded archive and which are selected",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureConfig(); err != nil {
			return err
		}
		s, err := openSession()
		if err != nil {
			return err
		}
		available, err := archive.FindCSVFiles(s.ExtractDir())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if filesJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"archive":   s.ArchiveName,
				"available": available,
				"selected":  s.Files,
				"rows":      s.Rows,
				"columns":   s.Columns,
			})
		}
		fmt.Fprintf(out, "Archive: %s (%d rows × %d columns)\n", s.ArchiveName, s.Rows, len(s.Columns))
		for _, f := range available {
			mark := " "
			if slices.Contains(s.Files, f) {
				mark = "✓"
			}
			fmt.Fprintf(out, "  [%s] %s\n", mark, f)
		}
		if len(s.History) > 0 {
			fmt.Fprintf(out, "Questions asked: %d\n", len(s.History))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(filesCmd)
	filesCmd.Flags().BoolVar(&filesJSON, "json", false, "print as JSON")
}
