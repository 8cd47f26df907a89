package commands

import (
	"github.com/spf13/cobra"

	"gradcafe_scraper/internal/app"
	"gradcafe_scraper/internal/repository"
)

var mergeRaw *string

func init() {
	mergeRaw = mergeCmd.Flags().String("raw", "", "Raw corpus to merge (defaults to paths.raw_corpus).")
	rootCmd.AddCommand(mergeCmd)
}

var mergeCmd = &cobra.Command{
	Use:   "merge [--raw <path/to/raw.json>]",
	Short: "Cleans an already scraped raw batch and merges it into the cleaned corpus.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			raw := a.RawCorpus
			if *mergeRaw != "" {
				raw = repository.NewRawCorpus(*mergeRaw, appLog)
			}
			batch := raw.Load()
			appLog.Info("merging raw batch", "file", raw.Path(), "entries", len(batch))

			res, err := a.Pipeline.MergeBatch(cmd.Context(), batch)
			if err != nil {
				return err
			}
			cmd.Printf("cleaned %d, added %d, corpus now %d records (%s)\n",
				res.Cleaned, res.Added, res.Total, a.Cleaned.Path())
			return nil
		})
	},
}
