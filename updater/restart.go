package updater

import (
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// ErrRestartUnsupported is returned by RestartService outside Windows.
var ErrRestartUnsupported = errors.New("service restart only supported on Windows")

// RestartService restarts the Windows service after an update. The stop
// and start run in the background so the caller can finish its request.
func RestartService(serviceName string, logger *zap.SugaredLogger) error {
	if runtime.GOOS != "windows" {
		return errors.WithHint(ErrRestartUnsupported, "restart the service with your init system")
	}

	logger.Info("Scheduling service restart...")
	go func() {
		time.Sleep(2 * time.Second)

		if err := exec.Command("sc", "stop", serviceName).Run(); err != nil {
			logger.Warnf("Failed to stop service: %v", err)
		}
		time.Sleep(3 * time.Second)
		if err := exec.Command("sc", "start", serviceName).Run(); err != nil {
			logger.Warnf("Failed to start service: %v", err)
		}
	}()
	return nil
}

// RestartSelf starts the updated binary with the current arguments and
// exits. Used when running in the foreground rather than as a service.
func RestartSelf(logger *zap.SugaredLogger) error {
	exe, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "failed to get executable path")
	}

	logger.Info("Restarting application...")
	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "failed to restart")
	}

	_ = logger.Sync()
	os.Exit(0)
	return nil
}
