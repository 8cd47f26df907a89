package commands

import (
	"github.com/spf13/cobra"

	"gradcafe_scraper/internal/app"
)

var (
	loadReset *bool
	loadSeed  *bool
)

func init() {
	loadReset = loadCmd.Flags().Bool("reset", false, "Drop and recreate the applicants table first.")
	loadSeed = loadCmd.Flags().Bool("seed", false, "Only load when the applicants table is empty.")
	loadCmd.MarkFlagsMutuallyExclusive("reset", "seed")
	rootCmd.AddCommand(loadCmd)
}

var loadCmd = &cobra.Command{
	Use:   "load [--reset | --seed]",
	Short: "Loads the cleaned corpus into the applicants table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			if err := a.RequireDB(); err != nil {
				return err
			}
			records := a.Cleaned.Load()

			var inserted int
			var err error
			if *loadSeed {
				inserted, err = a.Loader.SeedIfEmpty(cmd.Context(), records)
			} else {
				inserted, err = a.Loader.Load(cmd.Context(), records, *loadReset)
			}
			if err != nil {
				return err
			}

			total, err := a.Loader.Count(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("inserted %d of %d records, table now holds %d rows\n", inserted, len(records), total)
			return nil
		})
	},
}
