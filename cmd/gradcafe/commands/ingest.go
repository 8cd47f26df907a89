package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"gradcafe_scraper/internal/app"
)

func init() {
	rootCmd.AddCommand(ingestCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Scrapes new results, merges them into the cleaned corpus and loads the database when configured.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			res, err := a.Pipeline.RunIngestion(cmd.Context())

			t := newTable()
			t.AppendHeader(table.Row{"Step", "Value"})
			if res != nil && res.Scrape != nil {
				t.AppendRow(table.Row{"stop reason", res.Scrape.StopReason})
				t.AppendRow(table.Row{"pages scraped", res.Scrape.Pages})
				t.AppendRow(table.Row{"watermark", res.Scrape.Watermark})
				t.AppendRow(table.Row{"new raw entries", len(res.Scrape.New)})
			}
			if res != nil && res.Merge != nil {
				t.AppendRow(table.Row{"cleaned", res.Merge.Cleaned})
				t.AppendRow(table.Row{"added to corpus", res.Merge.Added})
				t.AppendRow(table.Row{"corpus size", res.Merge.Total})
			}
			if a.Loader != nil && res != nil {
				t.AppendRow(table.Row{"rows inserted", res.Loaded})
			}
			t.Render()

			return err
		})
	},
}
