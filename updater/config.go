package updater

import "time"

const (
	// GitHub repository the releases are published to
	RepoOwner = "purchase-export"
	RepoName  = "purchase-export"

	DefaultCheckInterval = 1 * time.Hour

	// StartupDelay lets a freshly started service settle before the first
	// periodic check.
	StartupDelay = 30 * time.Second
)

// Config holds the updater configuration
type Config struct {
	Owner          string
	Repo           string
	CheckInterval  time.Duration
	CurrentVersion string
}

// DefaultConfig returns the configuration for this project's releases.
func DefaultConfig(version string) *Config {
	return &Config{
		Owner:          RepoOwner,
		Repo:           RepoName,
		CheckInterval:  DefaultCheckInterval,
		CurrentVersion: version,
	}
}

// Slug returns owner/repo.
func (c *Config) Slug() string {
	return c.Owner + "/" + c.Repo
}
