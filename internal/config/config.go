package config

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"go-gallery-archiver/internal/api"
	"go-gallery-archiver/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Default values for configuration
const (
	DefaultDownloadRoot        = "downloads"
	DefaultDatabasePath        = "" // Relative to DownloadRoot if empty
	DefaultIndexPath           = "" // Relative to DownloadRoot if empty
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
	DefaultConfigFilePath      = "config.toml"
	DefaultUncategorizedFolder = "uncategorized"
	DefaultAssetExtension      = "jpeg"
	DefaultMode                = models.ModeNew
	DefaultDuplicateThreshold  = 3
	DefaultJitterMinMs         = 500
	DefaultJitterMaxMs         = 2000
	DefaultViewportWidth       = 1920
	DefaultViewportHeight      = 1080
	DefaultBrowserTimeoutSec   = 30
	DefaultFetchTimeoutSec     = 120
	DefaultRetryAttempts       = 3
	DefaultRetryDelayMs        = 1000
)

// setViperDefaults configures Viper with the application's default values.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("downloadroot", DefaultDownloadRoot)
	v.SetDefault("databasepath", DefaultDatabasePath)
	v.SetDefault("indexpath", DefaultIndexPath)
	v.SetDefault("loglevel", DefaultLogLevel)
	v.SetDefault("logformat", DefaultLogFormat)
	v.SetDefault("siteurl", "")
	v.SetDefault("dashboardurl", "")
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("uncategorizedfolder", DefaultUncategorizedFolder)
	v.SetDefault("assetextension", DefaultAssetExtension)
	v.SetDefault("mode", DefaultMode)
	v.SetDefault("duplicatethreshold", DefaultDuplicateThreshold)
	v.SetDefault("jitterminms", DefaultJitterMinMs)
	v.SetDefault("jittermaxms", DefaultJitterMaxMs)
	v.SetDefault("viewportwidth", DefaultViewportWidth)
	v.SetDefault("viewportheight", DefaultViewportHeight)
	v.SetDefault("browsertimeoutsec", DefaultBrowserTimeoutSec)
	v.SetDefault("fetchtimeoutsec", DefaultFetchTimeoutSec)
	v.SetDefault("retryattempts", DefaultRetryAttempts)
	v.SetDefault("retrydelayms", DefaultRetryDelayMs)
	v.SetDefault("includeseedinhash", false)
	v.SetDefault("logrequests", false)
	v.SetDefault("headless", true)
}

// CliFlags holds pointers to values received from command-line flags.
// Nil fields indicate the flag was not provided by the user.
type CliFlags struct {
	ConfigFilePath     *string
	DownloadRoot       *string // --download-root
	LogLevel           *string // --log-level
	LogFormat          *string // --log-format
	LogRequests        *bool   // --log-requests
	Mode               *string // --mode
	DuplicateThreshold *int    // --duplicate-threshold
	Headless           *bool   // --headless
	IncludeSeedInHash  *bool   // --seed-in-hash
}

// Initialize builds the configuration value object from defaults, the config
// file, environment variables (GALLERY_ prefix) and CLI flags, highest
// precedence last. It also returns the HTTP transport to use for asset
// fetches, wrapped in a request logger when configured.
func Initialize(flags CliFlags) (models.Config, http.RoundTripper, error) {
	v := viper.New()
	v.SetEnvPrefix("GALLERY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setViperDefaults(v)

	configFilePath := DefaultConfigFilePath
	if flags.ConfigFilePath != nil && *flags.ConfigFilePath != "" {
		configFilePath = *flags.ConfigFilePath
	}
	v.SetConfigFile(configFilePath)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Debugf("Config file '%s' not found, using defaults, environment and flags", configFilePath)
		} else {
			log.Warnf("Error reading config file '%s': %v", configFilePath, err)
		}
	} else {
		log.Debugf("Read config file: %s", v.ConfigFileUsed())
	}

	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return models.Config{}, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// CLI flags win over everything.
	if flags.DownloadRoot != nil {
		cfg.DownloadRoot = *flags.DownloadRoot
	}
	if flags.LogLevel != nil {
		cfg.LogLevel = *flags.LogLevel
	}
	if flags.LogFormat != nil {
		cfg.LogFormat = *flags.LogFormat
	}
	if flags.LogRequests != nil {
		cfg.LogRequests = *flags.LogRequests
	}
	if flags.Mode != nil {
		cfg.Mode = *flags.Mode
	}
	if flags.DuplicateThreshold != nil {
		cfg.DuplicateThreshold = *flags.DuplicateThreshold
	}
	if flags.Headless != nil {
		cfg.Headless = *flags.Headless
	}
	if flags.IncludeSeedInHash != nil {
		cfg.IncludeSeedInHash = *flags.IncludeSeedInHash
	}

	applyDerivedPaths(&cfg)

	if err := validate(&cfg); err != nil {
		return models.Config{}, nil, err
	}

	transport, err := buildTransport(&cfg)
	if err != nil {
		return models.Config{}, nil, err
	}

	return cfg, transport, nil
}

// applyDerivedPaths places the database and index next to the downloads when
// no explicit locations are configured.
func applyDerivedPaths(cfg *models.Config) {
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.DownloadRoot, "gallery.db")
	}
	if cfg.IndexPath == "" {
		cfg.IndexPath = filepath.Join(cfg.DownloadRoot, "gallery.bleve")
	}
}

func validate(cfg *models.Config) error {
	if cfg.DownloadRoot == "" {
		return fmt.Errorf("download root must not be empty")
	}
	if cfg.Mode != models.ModeNew && cfg.Mode != models.ModeAll {
		return fmt.Errorf("invalid mode %q: must be %q or %q", cfg.Mode, models.ModeNew, models.ModeAll)
	}
	if cfg.DuplicateThreshold < 1 {
		return fmt.Errorf("duplicate threshold must be at least 1, got %d", cfg.DuplicateThreshold)
	}
	if cfg.JitterMinMs > cfg.JitterMaxMs {
		return fmt.Errorf("jitter minimum %dms exceeds maximum %dms", cfg.JitterMinMs, cfg.JitterMaxMs)
	}
	return nil
}

func buildTransport(cfg *models.Config) (http.RoundTripper, error) {
	if !cfg.LogRequests {
		return http.DefaultTransport, nil
	}

	logPath := filepath.Join(cfg.DownloadRoot, "requests.log")
	transport, err := api.NewLoggingTransport(nil, logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to set up request logging: %w", err)
	}
	log.WithField("path", logPath).Debug("Request logging enabled")
	return transport, nil
}

// ValidateCredentials checks the fields only the crawl command needs. They
// come from the environment or .env, never from flags.
func ValidateCredentials(cfg *models.Config) error {
	for name, value := range map[string]string{
		"GALLERY_SITEURL":      cfg.SiteURL,
		"GALLERY_DASHBOARDURL": cfg.DashboardURL,
		"GALLERY_USERNAME":     cfg.Username,
		"GALLERY_PASSWORD":     cfg.Password,
	} {
		if value == "" {
			return fmt.Errorf("missing required setting %s", name)
		}
	}
	return nil
}
