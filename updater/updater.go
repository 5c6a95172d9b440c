// Package updater replaces the running binary with the newest GitHub
// release.
package updater

import (
	"context"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creativeprojects/go-selfupdate"
	"go.uber.org/zap"
)

// Updater handles checking for and applying updates
type Updater struct {
	config *Config
	logger *zap.SugaredLogger
}

// New creates a new Updater
func New(config *Config, logger *zap.SugaredLogger) *Updater {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultCheckInterval
	}
	return &Updater{
		config: config,
		logger: logger.Named("updater"),
	}
}

func newClient() (*selfupdate.Updater, error) {
	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create GitHub source")
	}
	client, err := selfupdate.NewUpdater(selfupdate.Config{Source: source})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create updater")
	}
	return client, nil
}

// normalizeVersion prefixes v so the version compares as semver.
func normalizeVersion(v string) string {
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// IsDevBuild reports whether version is an unreleased local build, which
// is never updated.
func IsDevBuild(version string) bool {
	return version == "" || version == "dev"
}

// CheckForUpdate checks if a newer version is available
func (u *Updater) CheckForUpdate(ctx context.Context) (*selfupdate.Release, bool, error) {
	u.logger.Infof("Checking for updates... (current: %s)", u.config.CurrentVersion)

	client, err := newClient()
	if err != nil {
		return nil, false, err
	}

	latest, found, err := client.DetectLatest(ctx, selfupdate.ParseSlug(u.config.Slug()))
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to detect latest version")
	}
	if !found {
		u.logger.Infof("No release found for %s/%s", runtime.GOOS, runtime.GOARCH)
		return nil, false, nil
	}

	if IsDevBuild(u.config.CurrentVersion) {
		u.logger.Infof("Development build; latest release is %s", latest.Version())
		return latest, false, nil
	}
	if latest.LessOrEqual(normalizeVersion(u.config.CurrentVersion)) {
		u.logger.Infof("Current version (%s) is up to date", u.config.CurrentVersion)
		return latest, false, nil
	}

	u.logger.Infof("New version available: %s (current: %s)", latest.Version(), u.config.CurrentVersion)
	return latest, true, nil
}

// Update downloads and applies the update
func (u *Updater) Update(ctx context.Context, release *selfupdate.Release) error {
	u.logger.Infof("Downloading update %s...", release.Version())

	exe, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "failed to get executable path")
	}
	client, err := newClient()
	if err != nil {
		return err
	}
	if err := client.UpdateTo(ctx, release, exe); err != nil {
		return errors.Wrapf(err, "failed to update to %s", release.Version())
	}

	u.logger.Infof("Successfully updated to version %s", release.Version())
	return nil
}

// CheckAndUpdate checks for updates and applies if available
func (u *Updater) CheckAndUpdate(ctx context.Context) (bool, error) {
	release, needsUpdate, err := u.CheckForUpdate(ctx)
	if err != nil || !needsUpdate {
		return false, err
	}
	if err := u.Update(ctx, release); err != nil {
		return false, err
	}
	return true, nil
}

// StartPeriodicCheck checks every CheckInterval after StartupDelay and
// calls onUpdateAvailable when a newer release exists. It returns at once.
func (u *Updater) StartPeriodicCheck(ctx context.Context, onUpdateAvailable func()) {
	go u.periodic(ctx, StartupDelay, onUpdateAvailable)
}

func (u *Updater) periodic(ctx context.Context, delay time.Duration, onUpdateAvailable func()) {
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(u.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			release, needsUpdate, err := u.CheckForUpdate(ctx)
			if err != nil {
				u.logger.Warnf("Update check error: %v", err)
				continue
			}
			if needsUpdate {
				u.logger.Infof("Update available: %s", release.Version())
				if onUpdateAvailable != nil {
					onUpdateAvailable()
				}
			}

		case <-ctx.Done():
			u.logger.Info("Periodic update check stopped")
			return
		}
	}
}

// GetLatestVersion returns the latest version string without updating
func (u *Updater) GetLatestVersion(ctx context.Context) (string, error) {
	release, _, err := u.CheckForUpdate(ctx)
	if err != nil {
		return "", err
	}
	if release == nil {
		return u.config.CurrentVersion, nil
	}
	return release.Version(), nil
}
