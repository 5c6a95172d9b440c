// Command purchase-export exports the App Store purchase history shown on
// reportaproblem.apple.com to CSV, from a signed-in browser or a saved page.
package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
)

// Version is set at build time
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		for _, hint := range errors.GetAllHints(err) {
			pterm.Info.Println(hint)
		}
		os.Exit(1)
	}
}
