package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/purchase-export/config"
	"github.com/purchase-export/logger"
)

var (
	cfgFile string

	// set by PersistentPreRunE for every command
	appConfig *config.Config
	appLog    *zap.SugaredLogger
	closeLog  = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "purchase-export",
	Short: "Export App Store purchase history to CSV",
	Long: `purchase-export reads the purchase history at reportaproblem.apple.com
and writes it as CSV, one row per purchased item.

Examples:
  purchase-export export -n 100          # export from a signed-in browser
  purchase-export parse saved.html       # export from a saved page
  purchase-export validate               # check the page still looks as expected
  purchase-export serve                  # serve gRPC and the WebSocket bridge
  purchase-export service install        # install as an OS service`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			cfg.Log.Level = "debug"
		}
		log, closeFn, err := logger.New(logger.Options{
			JSON:   cfg.Log.JSON,
			Level:  cfg.Log.Level,
			File:   cfg.Log.File,
			Output: os.Stderr,
		})
		if err != nil {
			return err
		}
		appConfig, appLog, closeLog = cfg, log, closeFn
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLog()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./purchase-export.yaml or $HOME/.purchase-export/purchase-export.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(versionCmd)
}

// addBrowserFlags registers the flags that point the browser at the page.
// Their names match config keys, so config.Load picks them up.
func addBrowserFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("url", "", "page to open (default https://reportaproblem.apple.com/)")
	f.Bool("headless", false, "run Chrome without a window")
	f.String("remote-url", "", "attach to a running Chrome at this DevTools URL")
	f.String("profile-dir", "", "Chrome profile directory that keeps you signed in")
	f.Duration("page-timeout", 0, "how long to wait for purchases to appear")
	f.String("schema-file", "", "page schema YAML overriding the built-in one")
}
