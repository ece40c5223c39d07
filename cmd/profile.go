package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/csvoracle-cli/internal/analysis"
	"github.com/KaramelBytes/csvoracle-cli/internal/utils"
)

var (
	profOutputPath string
	profSampleRows int
	profMaxRows    int
	profGroupBy    []string
	profCorr       bool
	profDecimal    string
	profOutliers   bool
	profOutlierThr float64
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Summarize the loaded table: schema, stats, groups and correlations",
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

		opt := analysis.DefaultOptions()
		opt.Name = s.ArchiveName
		if profSampleRows > 0 {
			opt.SampleRows = profSampleRows
		}
		if cmd.Flags().Changed("max-rows") {
			opt.MaxRows = profMaxRows
		}
		switch strings.ToLower(strings.TrimSpace(profDecimal)) {
		case ",", "comma":
			opt.DecimalSeparator = ','
		case ".", "dot":
			opt.DecimalSeparator = '.'
		case "":
		default:
			return fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", profDecimal)
		}
		opt.GroupBy = profGroupBy
		opt.Correlations = profCorr
		opt.Outliers = profOutliers
		if profOutlierThr > 0 {
			opt.OutlierThreshold = profOutlierThr
		}

		md := analysis.Profile(t, opt).Markdown()
		if profOutputPath != "" {
			if err := utils.SafeWriteFile(profOutputPath, []byte(md)); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote profile to %s\n", profOutputPath)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), md)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().StringVarP(&profOutputPath, "output", "o", "", "optional path to write the profile (Markdown)")
	profileCmd.Flags().StringVar(&profDecimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	profileCmd.Flags().IntVar(&profSampleRows, "sample-rows", 5, "number of sample rows to include")
	profileCmd.Flags().IntVar(&profMaxRows, "max-rows", 100000, "maximum rows to process (0 = unlimited)")
	profileCmd.Flags().StringSliceVar(&profGroupBy, "group-by", nil, "comma-separated column names to group by (repeatable)")
	profileCmd.Flags().BoolVar(&profCorr, "correlations", false, "compute Pearson correlations among numeric columns")
	profileCmd.Flags().BoolVar(&profOutliers, "outliers", true, "compute robust outlier counts (MAD)")
	profileCmd.Flags().Float64Var(&profOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based)")
}
