package models

import (
	"fmt"
	"time"
)

type (
	// Config holds the application's configuration settings.
	Config struct {
		// Strings first
		DownloadRoot        string `toml:"DownloadRoot" json:"DownloadRoot"`
		DatabasePath        string `toml:"DatabasePath" json:"DatabasePath"`
		IndexPath           string `toml:"IndexPath" json:"IndexPath"`
		LogLevel            string `toml:"LogLevel" json:"LogLevel"`
		LogFormat           string `toml:"LogFormat" json:"LogFormat"`
		SiteURL             string `toml:"SiteURL" json:"SiteURL"`
		DashboardURL        string `toml:"DashboardURL" json:"DashboardURL"`
		Username            string `toml:"Username" json:"-"`
		Password            string `toml:"Password" json:"-"`
		UncategorizedFolder string `toml:"UncategorizedFolder" json:"UncategorizedFolder"`
		AssetExtension      string `toml:"AssetExtension" json:"AssetExtension"`
		Mode                string `toml:"Mode" json:"Mode"` // "new" or "all"
		// Integers
		DuplicateThreshold int `toml:"DuplicateThreshold" json:"DuplicateThreshold"`
		JitterMinMs        int `toml:"JitterMinMs" json:"JitterMinMs"`
		JitterMaxMs        int `toml:"JitterMaxMs" json:"JitterMaxMs"`
		ViewportWidth      int `toml:"ViewportWidth" json:"ViewportWidth"`
		ViewportHeight     int `toml:"ViewportHeight" json:"ViewportHeight"`
		BrowserTimeoutSec  int `toml:"BrowserTimeoutSec" json:"BrowserTimeoutSec"`
		FetchTimeoutSec    int `toml:"FetchTimeoutSec" json:"FetchTimeoutSec"`
		RetryAttempts      int `toml:"RetryAttempts" json:"RetryAttempts"`
		RetryDelayMs       int `toml:"RetryDelayMs" json:"RetryDelayMs"`
		// Bools
		IncludeSeedInHash bool `toml:"IncludeSeedInHash" json:"IncludeSeedInHash"`
		LogRequests       bool `toml:"LogRequests" json:"LogRequests"`
		Headless          bool `toml:"Headless" json:"Headless"`
	}

	// SizeInfo describes the requested output geometry of a generation.
	SizeInfo struct {
		Ratio      string `json:"ratio"`
		Resolution string `json:"resolution"`
	}

	// ModelRef is a named link to the base model an item was generated with.
	ModelRef struct {
		Name string `json:"name"`
		Link string `json:"link"`
	}

	// Lora is a weighted auxiliary model reference attached to a generation.
	Lora struct {
		Name   string `json:"name"`
		Link   string `json:"link"`
		Weight string `json:"weight"`
	}

	// ItemData is the structured metadata extracted from one gallery item's
	// detail view. It is transient; only its derived record and files persist.
	ItemData struct {
		ItemID         string   `json:"-"`
		Prompt         string   `json:"prompt"`
		NegativePrompt string   `json:"negative"`
		Method         string   `json:"method"`
		Steps          string   `json:"steps"`
		Cfg            string   `json:"cfg"`
		Seed           string   `json:"seed"`
		Vae            string   `json:"vae"`
		Size           SizeInfo `json:"size"`
		Model          ModelRef `json:"model"`
		Loras          []Lora   `json:"loras"`
		AssetURLs      []string `json:"-"`
	}

	// DownloadRecord is one row per processing attempt of one item.
	DownloadRecord struct {
		ID            int64
		ItemID        string
		Status        string
		FailureReason string
		StoredPath    string
		CreatedAt     time.Time
	}

	// CategoryMapping is one confirmed category-to-folder decision.
	CategoryMapping struct {
		ID          int64
		CategoryKey string
		FolderName  string
		CreatedAt   time.Time
	}

	// DuplicateGroup aggregates attempt rows sharing an item ID.
	DuplicateGroup struct {
		ItemID    string
		Count     int
		CreatedAt []time.Time // newest first
	}
)

// Attempt status constants for DownloadRecord.Status.
const (
	StatusPending = "Pending"
	StatusSuccess = "Success"
	StatusFailure = "Failure"
)

// Crawl modes.
const (
	ModeNew = "new" // stop at the first previously-succeeded item
	ModeAll = "all" // exhaustive walk, duplicate-threshold prompt as the brake
)

// MissingFieldError reports the first mandatory metadata field that could not
// be extracted. It marks a validation failure, not a crash.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("mandatory field missing: %s", e.Field)
}

// Validate checks that every mandatory field is present. Loras are optional;
// everything else must be non-empty for the item to be eligible for hashing
// and storage.
func (d *ItemData) Validate() error {
	checks := []struct {
		field string
		value string
	}{
		{"itemId", d.ItemID},
		{"prompt", d.Prompt},
		{"negative", d.NegativePrompt},
		{"method", d.Method},
		{"steps", d.Steps},
		{"cfg", d.Cfg},
		{"seed", d.Seed},
		{"vae", d.Vae},
		{"size.ratio", d.Size.Ratio},
		{"size.resolution", d.Size.Resolution},
		{"model.name", d.Model.Name},
		{"model.link", d.Model.Link},
	}
	for _, c := range checks {
		if c.value == "" {
			return &MissingFieldError{Field: c.field}
		}
	}
	if len(d.AssetURLs) == 0 {
		return &MissingFieldError{Field: "assets"}
	}
	return nil
}
