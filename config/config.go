// Package config loads purchase-export settings from defaults, an optional
// YAML file, PURCHASE_EXPORT_* environment variables and command flags.
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/purchase-export/extract"
	"github.com/purchase-export/page"
	"github.com/purchase-export/scrapers"
)

// EnvPrefix prefixes environment overrides, e.g. PURCHASE_EXPORT_LOADER_MIN_GAIN.
const EnvPrefix = "PURCHASE_EXPORT"

// Config is the full application configuration.
type Config struct {
	URL         string        `mapstructure:"url"`
	Host        string        `mapstructure:"host"`
	Headless    bool          `mapstructure:"headless"`
	RemoteURL   string        `mapstructure:"remote_url"`
	ProfileDir  string        `mapstructure:"profile_dir"`
	PageTimeout time.Duration `mapstructure:"page_timeout"`

	DownloadPath string `mapstructure:"download_path"`
	FilePrefix   string `mapstructure:"file_prefix"`
	MaxPurchases int    `mapstructure:"max_purchases"`
	MaxAllowed   int    `mapstructure:"max_allowed"`
	SchemaFile   string `mapstructure:"schema_file"`

	GRPCPort       string        `mapstructure:"grpc_port"`
	WSAddr         string        `mapstructure:"ws_addr"`
	AutoUpdate     bool          `mapstructure:"auto_update"`
	UpdateInterval time.Duration `mapstructure:"update_interval"`

	Loader LoaderConfig `mapstructure:"loader"`
	Pacing PacingConfig `mapstructure:"pacing"`
	Log    LogConfig    `mapstructure:"log"`
}

type LoaderConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MaxChecks      int           `mapstructure:"max_checks"`
	TriggerTimeout time.Duration `mapstructure:"trigger_timeout"`
	StallThreshold int           `mapstructure:"stall_threshold"`
	MinGain        int           `mapstructure:"min_gain"`
}

type PacingConfig struct {
	PreClickMin           time.Duration `mapstructure:"pre_click_min"`
	PreClickMax           time.Duration `mapstructure:"pre_click_max"`
	PostLoadMin           time.Duration `mapstructure:"post_load_min"`
	PostLoadMax           time.Duration `mapstructure:"post_load_max"`
	DetailTimeout         time.Duration `mapstructure:"detail_timeout"`
	InteractionsPerSecond float64       `mapstructure:"interactions_per_second"`
}

type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("url", "https://"+page.DefaultHost+"/")
	v.SetDefault("host", page.DefaultHost)
	v.SetDefault("headless", false)
	v.SetDefault("remote_url", "")
	v.SetDefault("profile_dir", "")
	v.SetDefault("page_timeout", 5*time.Minute)

	v.SetDefault("download_path", "downloads")
	v.SetDefault("file_prefix", "apple_purchases")
	v.SetDefault("max_purchases", 50)
	v.SetDefault("max_allowed", 1000)
	v.SetDefault("schema_file", "")

	v.SetDefault("grpc_port", "50051")
	v.SetDefault("ws_addr", "127.0.0.1:8765")
	v.SetDefault("auto_update", false)
	v.SetDefault("update_interval", time.Hour)

	v.SetDefault("loader.poll_interval", extract.DefaultPollInterval)
	v.SetDefault("loader.max_checks", extract.DefaultMaxChecks)
	v.SetDefault("loader.trigger_timeout", extract.DefaultTriggerTimeout)
	v.SetDefault("loader.stall_threshold", extract.DefaultStallThreshold)
	v.SetDefault("loader.min_gain", extract.DefaultMinGain)

	v.SetDefault("pacing.pre_click_min", extract.DefaultPreClick.Min)
	v.SetDefault("pacing.pre_click_max", extract.DefaultPreClick.Max)
	v.SetDefault("pacing.post_load_min", extract.DefaultPostLoad.Min)
	v.SetDefault("pacing.post_load_max", extract.DefaultPostLoad.Max)
	v.SetDefault("pacing.detail_timeout", extract.DefaultDetailTimeout)
	v.SetDefault("pacing.interactions_per_second", 2.0)

	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// Load reads the configuration. path may be empty, in which case
// purchase-export.yaml is looked up in the working directory and in
// $HOME/.purchase-export; a missing file is not an error. Flags in flags
// whose names match a key (with - for _) override every other source.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("purchase-export")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.purchase-export")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "error reading config file")
		}
	}

	if flags != nil {
		known := make(map[string]bool)
		for _, k := range v.AllKeys() {
			known[k] = true
		}
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if known[key] && bindErr == nil {
				bindErr = v.BindPFlag(key, f)
			}
		})
		if bindErr != nil {
			return nil, errors.Wrap(bindErr, "failed to bind flags")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the extractor cannot run with.
func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, ok bool) {
		if !ok {
			errs = append(errs, errors.Newf("%s must be positive", name))
		}
	}
	positive("max_purchases", c.MaxPurchases > 0)
	positive("max_allowed", c.MaxAllowed > 0)
	positive("page_timeout", c.PageTimeout > 0)
	positive("loader.poll_interval", c.Loader.PollInterval > 0)
	positive("loader.max_checks", c.Loader.MaxChecks > 0)
	positive("loader.trigger_timeout", c.Loader.TriggerTimeout > 0)
	positive("loader.stall_threshold", c.Loader.StallThreshold > 0)
	positive("loader.min_gain", c.Loader.MinGain > 0)
	positive("pacing.detail_timeout", c.Pacing.DetailTimeout > 0)

	if c.MaxPurchases > c.MaxAllowed {
		errs = append(errs, errors.Newf("max_purchases (%d) exceeds max_allowed (%d)", c.MaxPurchases, c.MaxAllowed))
	}
	if c.Pacing.PreClickMin < 0 || c.Pacing.PreClickMin > c.Pacing.PreClickMax {
		errs = append(errs, errors.New("pacing.pre_click_min must be between 0 and pacing.pre_click_max"))
	}
	if c.Pacing.PostLoadMin < 0 || c.Pacing.PostLoadMin > c.Pacing.PostLoadMax {
		errs = append(errs, errors.New("pacing.post_load_min must be between 0 and pacing.post_load_max"))
	}
	if c.Pacing.InteractionsPerSecond < 0 {
		errs = append(errs, errors.New("pacing.interactions_per_second must not be negative"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Wrap(errors.Join(errs...), "invalid configuration")
}

// ExtractLoader converts the loader section for the extractor.
func (c *Config) ExtractLoader() extract.LoaderConfig {
	return extract.LoaderConfig{
		PollInterval:   c.Loader.PollInterval,
		MaxChecks:      c.Loader.MaxChecks,
		TriggerTimeout: c.Loader.TriggerTimeout,
		StallThreshold: c.Loader.StallThreshold,
		MinGain:        c.Loader.MinGain,
		Now:            time.Now,
	}
}

// ExtractPacing converts the pacing section for the extractor.
func (c *Config) ExtractPacing() extract.PacingConfig {
	return extract.PacingConfig{
		PreClick:      extract.Range{Min: c.Pacing.PreClickMin, Max: c.Pacing.PreClickMax},
		PostLoad:      extract.Range{Min: c.Pacing.PostLoadMin, Max: c.Pacing.PostLoadMax},
		DetailTimeout: c.Pacing.DetailTimeout,
	}
}

// Browser returns the browser session settings.
func (c *Config) Browser() *scrapers.BrowserConfig {
	return &scrapers.BrowserConfig{
		URL:                   c.URL,
		Host:                  c.Host,
		RemoteURL:             c.RemoteURL,
		ProfileDir:            c.ProfileDir,
		Headless:              c.Headless,
		PageTimeout:           c.PageTimeout,
		InteractionsPerSecond: c.Pacing.InteractionsPerSecond,
	}
}

// Schema returns the page schema: the built-in one, overlaid with
// schema_file when set.
func (c *Config) Schema() (*page.Schema, error) {
	if c.SchemaFile != "" {
		return page.LoadSchema(c.SchemaFile)
	}
	s := page.DefaultSchema()
	if err := s.Compile(); err != nil {
		return nil, err
	}
	return s, nil
}
