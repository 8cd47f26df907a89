package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"gradcafe_scraper/internal/app"
	"gradcafe_scraper/internal/service"
)

var analyzeSave *bool

func init() {
	analyzeSave = analyzeCmd.Flags().Bool("save", false, "Store the result in analysis_cache.")
	rootCmd.AddCommand(analyzeCmd)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [--save]",
	Short: "Answers the dashboard questions against the applicants table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			if err := a.RequireDB(); err != nil {
				return err
			}

			var analysis *service.Analysis
			var err error
			if *analyzeSave {
				analysis, err = a.Analyzer.Refresh(cmd.Context())
			} else {
				analysis, err = a.Analyzer.Analyze(cmd.Context())
			}

			if analysis != nil {
				t := newTable()
				t.AppendHeader(table.Row{"#", "Question", "Answer"})
				for _, r := range analysis.Results {
					t.AppendRow(table.Row{r.Key, r.Question, r.Value})
				}
				t.Render()
			}
			return err
		})
	},
}
