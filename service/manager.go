package service

import (
	"path/filepath"
	"strconv"

	"github.com/cockroachdb/errors"
	svc "github.com/kardianos/service"
	"go.uber.org/zap"
)

// Commands accepted by RunServiceCommand.
var Commands = []string{"install", "uninstall", "start", "stop", "restart", "status", "run"}

// Manager handles service management operations
type Manager struct {
	service svc.Service
	program *Program
}

// NewManager creates a new service manager
func NewManager(prg *Program) (*Manager, error) {
	s, err := svc.New(prg, NewServiceConfig(buildServiceArgs(prg)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create service")
	}
	return &Manager{service: s, program: prg}, nil
}

// buildServiceArgs returns the arguments the service manager starts the
// executable with. Settings are passed as flags so the service does not
// depend on the installing user's environment.
func buildServiceArgs(prg *Program) []string {
	cfg := prg.Config
	args := []string{"serve"}

	if prg.ConfigFile != "" {
		args = append(args, "--config="+absPath(prg.ConfigFile))
	}
	args = append(args,
		"--grpc-port="+cfg.GRPCPort,
		"--ws-addr="+cfg.WSAddr,
		"--download-path="+absPath(cfg.DownloadPath),
		"--headless="+strconv.FormatBool(cfg.Headless),
		"--auto-update="+strconv.FormatBool(cfg.AutoUpdate),
	)
	if cfg.UpdateInterval > 0 {
		args = append(args, "--update-interval="+cfg.UpdateInterval.String())
	}
	if cfg.ProfileDir != "" {
		args = append(args, "--profile-dir="+absPath(cfg.ProfileDir))
	}
	if cfg.RemoteURL != "" {
		args = append(args, "--remote-url="+cfg.RemoteURL)
	}
	return args
}

func absPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// Install installs the service
func (m *Manager) Install() error {
	return m.service.Install()
}

// Uninstall uninstalls the service
func (m *Manager) Uninstall() error {
	return m.service.Uninstall()
}

// Start starts the service
func (m *Manager) Start() error {
	return m.service.Start()
}

// Stop stops the service
func (m *Manager) Stop() error {
	return m.service.Stop()
}

// Run runs the program until the service manager, or an interrupt when in
// the foreground, stops it.
func (m *Manager) Run() error {
	return m.service.Run()
}

// Status returns the service status
func (m *Manager) Status() (svc.Status, error) {
	return m.service.Status()
}

// RunServiceCommand handles service management commands
func RunServiceCommand(cmd string, prg *Program, logger *zap.SugaredLogger) error {
	mgr, err := NewManager(prg)
	if err != nil {
		return err
	}

	switch cmd {
	case "install":
		if err := mgr.Install(); err != nil {
			return errors.Wrap(err, "failed to install service")
		}
		logger.Infof("Service %s installed", ServiceName)
		logger.Infof("To start the service, run: %s service start", ServiceName)

	case "uninstall":
		_ = mgr.Stop()
		if err := mgr.Uninstall(); err != nil {
			return errors.Wrap(err, "failed to uninstall service")
		}
		logger.Info("Service uninstalled successfully")

	case "start":
		if err := mgr.Start(); err != nil {
			return errors.Wrap(err, "failed to start service")
		}
		logger.Info("Service started successfully")

	case "stop":
		if err := mgr.Stop(); err != nil {
			return errors.Wrap(err, "failed to stop service")
		}
		logger.Info("Service stopped successfully")

	case "restart":
		_ = mgr.Stop()
		if err := mgr.Start(); err != nil {
			return errors.Wrap(err, "failed to restart service")
		}
		logger.Info("Service restarted successfully")

	case "status":
		status, err := mgr.Status()
		if err != nil {
			return errors.Wrap(err, "failed to get service status")
		}
		logger.Infof("Service status: %s", StatusString(status))

	case "run":
		return mgr.Run()

	default:
		return errors.WithHintf(errors.Newf("unknown service command: %s", cmd),
			"valid commands: %v", Commands)
	}
	return nil
}

// StatusString names a service status.
func StatusString(status svc.Status) string {
	switch status {
	case svc.StatusRunning:
		return "Running"
	case svc.StatusStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}
