package cmd

import (
	"fmt"
	"net/http"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-gallery-archiver/internal/config"
	"go-gallery-archiver/internal/models"
)

// Persistent flag values. Whether the user actually set them is checked with
// Flags().Changed before they override the config.
var (
	cfgFile          string
	logLevelFlag     string
	logFormatFlag    string
	logRequestsFlag  bool
	downloadRootFlag string
)

// globalConfig holds the loaded configuration for the running command.
var globalConfig models.Config

// globalTransport is the HTTP transport for asset fetches, wrapped in a
// request logger when enabled.
var globalTransport http.RoundTripper

var rootCmd = &cobra.Command{
	Use:   "gallery-archiver",
	Short: "Archive a private gallery's items and metadata to disk",
	Long: `Gallery Archiver crawls a login-gated gallery dashboard, extracts each
item's generation metadata, and mirrors items to content-addressed
directories on disk with duplicate detection and resume support.`,
	PersistentPreRunE: loadGlobalConfig,
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file path (default is ./config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Logging level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "", "Logging format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&logRequestsFlag, "log-requests", false, "Log asset HTTP traffic to requests.log (overrides config)")
	rootCmd.PersistentFlags().StringVar(&downloadRootFlag, "download-root", "", "Directory to archive items into (overrides config)")
}

// loadGlobalConfig builds the configuration before any command runs.
func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	flags := config.CliFlags{}
	if cmd.Flags().Changed("config") {
		flags.ConfigFilePath = &cfgFile
	}
	if cmd.Flags().Changed("log-level") {
		flags.LogLevel = &logLevelFlag
	}
	if cmd.Flags().Changed("log-format") {
		flags.LogFormat = &logFormatFlag
	}
	if cmd.Flags().Changed("log-requests") {
		flags.LogRequests = &logRequestsFlag
	}
	if cmd.Flags().Changed("download-root") {
		flags.DownloadRoot = &downloadRootFlag
	}
	applyCommandFlags(cmd, &flags)

	cfg, transport, err := config.Initialize(flags)
	if err != nil {
		return err
	}
	globalConfig = cfg
	globalTransport = transport

	initLogging(cfg.LogLevel, cfg.LogFormat)
	return nil
}

// applyCommandFlags lets subcommands contribute their own overrides.
// Registered command flag vars are declared in the subcommand files.
func applyCommandFlags(cmd *cobra.Command, flags *config.CliFlags) {
	if cmd.Flags().Changed("mode") {
		flags.Mode = &modeFlag
	}
	if cmd.Flags().Changed("duplicate-threshold") {
		flags.DuplicateThreshold = &duplicateThresholdFlag
	}
	if cmd.Flags().Changed("windowed") {
		headless := !windowedFlag
		flags.Headless = &headless
	}
	if cmd.Flags().Changed("seed-in-hash") {
		flags.IncludeSeedInHash = &seedInHashFlag
	}
}

func initLogging(level, format string) {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("Invalid log level %q, defaulting to info", level)
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)

	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
