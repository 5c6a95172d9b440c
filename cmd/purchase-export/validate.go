package main

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/purchase-export/extract"
	"github.com/purchase-export/page"
	"github.com/purchase-export/scrapers"
)

var validateCmd = &cobra.Command{
	Use:   "validate [FILE.html]",
	Short: "Check that the purchase page still has the expected structure",
	Long: `Checks the purchase history against the page schema without exporting.
With FILE.html the saved page is checked, otherwise the live page in Chrome.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := appConfig.Schema()
		if err != nil {
			return err
		}

		var res *extract.ValidationResult
		if len(args) == 1 {
			doc, err := scrapers.LoadHTMLFile(args[0])
			if err != nil {
				return err
			}
			res = validate(cmd.Context(), doc, schema)
		} else {
			browser := scrapers.NewBrowser(appConfig.Browser(), appLog)
			err := scrapers.WithSession(cmd.Context(), browser, schema.Container, func(b *scrapers.Browser) error {
				res = validate(cmd.Context(), b, schema)
				return nil
			})
			if err != nil {
				return err
			}
		}

		renderValidation(res)
		if !res.IsValid {
			return res.Err()
		}
		pterm.Success.Printf("Page matches schema %s\n", res.SchemaVersion)
		return nil
	},
}

func validate(ctx context.Context, doc page.Document, schema *page.Schema) *extract.ValidationResult {
	return extract.NewValidator(doc, schema, appLog).Validate(ctx)
}

func init() {
	addBrowserFlags(validateCmd)
}
