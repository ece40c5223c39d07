package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var suggestCount int

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Ask the model for questions worth asking about the loaded data",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureConfig(); err != nil {
			return err
		}
		s, err := openSession()
		if err != nil {
			return err
		}
		t, err := reloadTable(cmd.Context(), s)
		if err != nil {
			return err
		}
		s.SetSuggestions(suggestQuestions(cmd.Context(), t, suggestCount))
		if err := s.Save(); err != nil {
			return err
		}
		printSuggestions(cmd.OutOrStdout(), s.Suggestions)
		return nil
	},
}

func printSuggestions(w io.Writer, qs []string) {
	if len(qs) == 0 {
		fmt.Fprintln(w, "No suggested questions available.")
		return
	}
	fmt.Fprintln(w, "Suggested questions:")
	for i, q := range qs {
		fmt.Fprintf(w, "  %d. %s\n", i+1, q)
	}
}

func init() {
	rootCmd.AddCommand(suggestCmd)
	suggestCmd.Flags().IntVarP(&suggestCount, "count", "n", 0, "number of questions (default from config)")
}
