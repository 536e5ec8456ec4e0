package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mechconnect/internal/api"
	"mechconnect/internal/geography"
)

// Files smaller than this are treated as failed downloads and fetched again.
const minScanFileSize = 16

// Region codes become file names, so only plain alphanumeric codes are written.
var scanCodePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

func validScanCode(code string) bool {
	return scanCodePattern.MatchString(code) && filepath.Base(code) == code
}

func runScan(cmd *cobra.Command, args []string) error {
	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return err
	}

	// Only geography requests are made, so the backend URL may be unset.
	baseURL := cfg.APIURL
	if baseURL == "" {
		baseURL = cfg.GeographyURL
	}
	client, err := api.New(api.Options{
		BaseURL:      baseURL,
		GeographyURL: cfg.GeographyURL,
		Timeout:      cfg.RequestTimeout,
	})
	if err != nil {
		return err
	}

	written, err := Scan(cmd.Context(), client, dir)
	log.WithFields(log.Fields{"dir": dir, "written": written, "requests": client.Requests()}).Info("Scan finished")
	return err
}

// Scan writes the provinces of every region to dir/<region code>.json and returns how many files it wrote.
// Regions whose file already exists with content are skipped, as are regions whose code is not alphanumeric.
func Scan(ctx context.Context, fetcher geography.Fetcher, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", dir, err)
	}

	regions, err := fetcher.Children(ctx, geography.Region, "")
	if err != nil {
		return 0, err
	}
	regions = geography.SortByName(regions)
	total := len(regions)

	written := 0
	for i, region := range regions {
		entry := log.WithField("region", region.Name)
		if !validScanCode(region.Code) {
			entry.WithField("code", region.Code).Warn("Skipping region with unusable code")
			continue
		}
		path := filepath.Join(dir, region.Code+".json")

		if stats, err := os.Stat(path); err == nil && stats.Size() >= minScanFileSize {
			entry.Debug("Already scanned, skipping")
			continue
		}

		entry.Debugf("[%6.2f] Fetching \"%s\"", float64(i+1)/float64(total)*100, region.Name)
		provinces, err := fetcher.Children(ctx, geography.Province, region.Code)
		if err != nil {
			return written, err
		}

		data, err := json.MarshalIndent(scanFile{Region: region, Provinces: geography.SortByName(provinces)}, "", "  ")
		if err != nil {
			return written, err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", path, err)
		}
		written++
	}
	return written, nil
}

type scanFile struct {
	Region    geography.Unit   `json:"region"`
	Provinces []geography.Unit `json:"provinces"`
}
