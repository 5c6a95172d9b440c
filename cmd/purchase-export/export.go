package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/purchase-export/export"
	"github.com/purchase-export/extract"
	"github.com/purchase-export/scrapers"
	"github.com/purchase-export/service"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export purchases from the signed-in browser",
	Long: `Opens the purchase history in Chrome, waits for you to sign in if needed,
and exports the newest purchases. Press Ctrl-C to stop early; the purchases
read so far are saved as a partial export.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig
		schema, err := cfg.Schema()
		if err != nil {
			return err
		}

		view := newProgressView()
		defer view.Stop()

		browser := scrapers.NewBrowser(cfg.Browser(), appLog)
		extractor := service.NewBrowserExtractor(
			func() service.LiveDocument { return browser },
			schema,
			extract.Options{
				Loader:     cfg.ExtractLoader(),
				Pacing:     cfg.ExtractPacing(),
				Logger:     appLog,
				MaxRequest: cfg.MaxAllowed,
				Progress:   view.Update,
			},
		)
		defer extractor.Close()

		store := export.NewStore(cfg.DownloadPath, cfg.FilePrefix, appLog)
		runner := export.NewRunner(extractor, store, appLog)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		out, err := runner.Export(ctx, cfg.MaxPurchases)
		view.Stop()
		if err != nil {
			return err
		}
		return printOutcome(out)
	},
}

func init() {
	addBrowserFlags(exportCmd)
	f := exportCmd.Flags()
	f.IntP("max-purchases", "n", 0, "number of purchases to export (default 50)")
	f.Int("max-allowed", 0, "upper bound for --max-purchases (default 1000)")
	f.String("download-path", "", "directory for export sessions (default ./downloads)")
	f.String("file-prefix", "", "CSV file name prefix (default apple_purchases)")
}
