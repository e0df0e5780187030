package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-gallery-archiver/internal/browser"
	"go-gallery-archiver/internal/config"
	"go-gallery-archiver/internal/crawler"
	"go-gallery-archiver/internal/database"
	"go-gallery-archiver/internal/downloader"
	"go-gallery-archiver/internal/extractor"
	"go-gallery-archiver/internal/index"
	"go-gallery-archiver/internal/organizer"
	"go-gallery-archiver/internal/prompt"
)

var (
	modeFlag               string
	duplicateThresholdFlag int
	windowedFlag           bool
	seedInHashFlag         bool
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Log in and archive gallery items",
	Long: `Logs into the gallery, walks the dashboard's item list and archives every
item not already recorded as successfully downloaded. In "new" mode the
crawl stops at the first known item; in "all" mode it walks everything
and pauses at the consecutive-duplicate threshold for confirmation.`,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)
	crawlCmd.Flags().StringVar(&modeFlag, "mode", "", `Crawl mode: "new" or "all" (overrides config)`)
	crawlCmd.Flags().IntVar(&duplicateThresholdFlag, "duplicate-threshold", 0, "Consecutive duplicates before pausing for confirmation (overrides config)")
	crawlCmd.Flags().BoolVar(&windowedFlag, "windowed", false, "Run the browser with a visible window")
	crawlCmd.Flags().BoolVar(&seedInHashFlag, "seed-in-hash", false, "Include the seed in the content hash, separating same-setting generations by seed")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg := &globalConfig
	if err := config.ValidateCredentials(cfg); err != nil {
		return err
	}

	// Store failures are fatal throughout: without it, dedup and resume
	// cannot be trusted.
	store, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Error("Failed to close database")
		}
	}()

	var indexer organizer.ItemIndexer
	searchIndex, err := index.OpenOrCreate(cfg.IndexPath)
	if err != nil {
		log.WithError(err).Warn("Search index unavailable, continuing without it")
	} else {
		indexer = searchIndex
		defer func() {
			if err := searchIndex.Close(); err != nil {
				log.WithError(err).Warn("Failed to close search index")
			}
		}()
	}

	session, err := browser.NewSession(cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	ctx := context.Background()
	if err := session.Login(ctx); err != nil {
		return err
	}

	fetchClient := &http.Client{
		Transport: globalTransport,
		Timeout:   time.Duration(cfg.FetchTimeoutSec) * time.Second,
	}

	status := uilive.New()
	status.Start()
	defer status.Stop()

	prompter := prompt.New(os.Stdin, os.Stdout)
	ext := extractor.New(session, cfg.RetryAttempts, time.Duration(cfg.RetryDelayMs)*time.Millisecond)
	org := organizer.New(cfg, store, downloader.NewDownloader(fetchClient), prompter, indexer)
	run := crawler.New(cfg, store, session, ext, org, prompter, status)

	if err := run.Run(ctx); err != nil {
		if errors.Is(err, organizer.ErrStore) {
			log.WithError(err).Error("Persistence store failed, aborting")
		}
		return err
	}

	log.Info("Crawl finished")
	return nil
}
