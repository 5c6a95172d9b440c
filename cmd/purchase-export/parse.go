package main

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/purchase-export/export"
	"github.com/purchase-export/extract"
	"github.com/purchase-export/scrapers"
)

var parseOutput string

var parseCmd = &cobra.Command{
	Use:   "parse FILE.html",
	Short: "Export purchases from a saved purchase history page",
	Long: `Runs the exporter against a page saved from the browser ("Save Page As",
complete HTML). Only the purchases present in the file can be exported, and
collapsed details that were never opened come out empty.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig
		schema, err := cfg.Schema()
		if err != nil {
			return err
		}
		doc, err := scrapers.LoadHTMLFile(args[0])
		if err != nil {
			return err
		}
		appLog.Infof("Loaded %q", doc.Title())

		requested := cfg.MaxPurchases
		if !cmd.Flags().Changed("max-purchases") {
			// everything in the file
			n, err := doc.CountOf(cmd.Context(), schema.Container)
			if err != nil {
				return err
			}
			requested = max(n, 1)
		}

		orch := extract.New(doc, schema, extract.Options{
			Loader: cfg.ExtractLoader(),
			Pacing: cfg.ExtractPacing(),
			Jitter: extract.NoJitter,
			Logger: appLog,
		})
		res, err := orch.Run(cmd.Context(), requested)
		if err != nil {
			return err
		}
		if res.Status == extract.StatusValidationFailed {
			renderValidation(res.Validation)
			return res.Validation.Err()
		}

		if len(res.Records) == 0 {
			pterm.Warning.Println("No purchases were found; nothing to write")
			renderFaults(res.Faults)
			return nil
		}

		var w io.Writer = os.Stdout
		if parseOutput != "" && parseOutput != "-" {
			f, err := os.Create(parseOutput)
			if err != nil {
				return errors.Wrap(err, "failed to create output file")
			}
			defer f.Close()
			w = f
		}
		if err := export.Write(w, res.Records); err != nil {
			return err
		}
		if w != os.Stdout {
			pterm.Success.Printf("Wrote %d rows from %d purchases to %s\n", len(res.Records), res.LoadedCount, parseOutput)
		}
		renderFaults(res.Faults)
		return nil
	},
}

func init() {
	f := parseCmd.Flags()
	f.StringVarP(&parseOutput, "output", "o", "", "CSV file to write (default stdout)")
	f.IntP("max-purchases", "n", 0, "only export the first n purchases in the file")
	f.String("schema-file", "", "page schema YAML overriding the built-in one")
}
