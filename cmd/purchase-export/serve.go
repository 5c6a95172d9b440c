package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/purchase-export/service"
	"github.com/purchase-export/updater"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve exports over gRPC and the local WebSocket bridge",
	Long: `Runs in the foreground until interrupted. The browser starts with the
first export request. This is also what the installed service runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return service.RunServiceCommand("run", newProgram(), appLog)
	},
}

var serviceCmd = &cobra.Command{
	Use:       "service COMMAND",
	Short:     "Manage the OS service (install, uninstall, start, stop, restart, status)",
	Args:      cobra.ExactArgs(1),
	ValidArgs: service.Commands,
	RunE: func(cmd *cobra.Command, args []string) error {
		return service.RunServiceCommand(args[0], newProgram(), appLog)
	},
}

var updateCheckOnly bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update to the latest release",
	RunE: func(cmd *cobra.Command, args []string) error {
		u := updater.New(updater.DefaultConfig(Version), appLog)
		if updateCheckOnly {
			latest, err := u.GetLatestVersion(cmd.Context())
			if err != nil {
				return err
			}
			pterm.Info.Printf("Current version: %s, latest release: %s\n", Version, latest)
			return nil
		}
		if updater.IsDevBuild(Version) {
			pterm.Warning.Println("Development builds are not updated")
			return nil
		}
		updated, err := u.CheckAndUpdate(cmd.Context())
		if err != nil {
			return err
		}
		if updated {
			pterm.Success.Println("Updated; restart purchase-export to use the new version")
		} else {
			pterm.Info.Println("Already up to date")
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		pterm.Printf("purchase-export %s\n", Version)
	},
}

func newProgram() *service.Program {
	return &service.Program{
		Config:     appConfig,
		Logger:     appLog,
		Version:    Version,
		ConfigFile: cfgFile,
	}
}

func addServeFlags(cmd *cobra.Command) {
	addBrowserFlags(cmd)
	f := cmd.Flags()
	f.String("grpc-port", "", "gRPC port (default 50051)")
	f.String("ws-addr", "", "WebSocket bridge address, empty string disables it (default 127.0.0.1:8765)")
	f.String("download-path", "", "directory for export sessions (default ./downloads)")
	f.Bool("auto-update", false, "install new releases automatically")
	f.Duration("update-interval", 0, "time between update checks (default 1h)")
	f.Int("max-purchases", 0, "count used when a request names none (default 50)")
	f.Int("max-allowed", 0, "largest count a request may ask for (default 1000)")
}

func init() {
	addServeFlags(serveCmd)
	addServeFlags(serviceCmd)
	updateCmd.Flags().BoolVar(&updateCheckOnly, "check", false, "only report the latest version")
}
