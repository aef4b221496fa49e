package jobs

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/karloscodes/cartridge"

	"shopsphere/internal/config"
	"shopsphere/internal/pkg/geoip"
	"shopsphere/internal/storage"
)

const (
	// MaxMind publishes GeoLite updates weekly.
	GeoLiteUpdateInterval = 7 * 24 * time.Hour
	geoLiteCheckInterval  = 24 * time.Hour

	systemScope          = "system"
	KeyGeoLiteLastUpdate = "geolite_last_update"
)

// GeoLiteUpdaterJob downloads the GeoLite2 country database when a license
// key is configured and reloads the resolver.
type GeoLiteUpdaterJob struct {
	dbManager   cartridge.DBManager
	logger      *slog.Logger
	licenseKey  string
	downloadURL string
	dbPath      string
	resolver    *geoip.Resolver
	client      *http.Client
	now         func() time.Time
}

func NewGeoLiteUpdaterJob(dbManager cartridge.DBManager, logger *slog.Logger, cfg *config.Config) *GeoLiteUpdaterJob {
	return &GeoLiteUpdaterJob{
		dbManager:   dbManager,
		logger:      logger,
		licenseKey:  cfg.GeoLiteLicenseKey,
		downloadURL: cfg.GeoLiteDownloadURL,
		dbPath:      cfg.GeoDBPath,
		resolver:    geoip.Default(),
		client:      &http.Client{Timeout: 2 * time.Minute},
		now:         time.Now,
	}
}

func (j *GeoLiteUpdaterJob) Name() string {
	return "geolite_updater"
}

func (j *GeoLiteUpdaterJob) Interval() time.Duration {
	return geoLiteCheckInterval
}

func (j *GeoLiteUpdaterJob) state() *storage.Database {
	return storage.NewDatabase(j.dbManager.GetConnection(), systemScope, j.logger)
}

// Run downloads a fresh database when the last one is older than a week.
func (j *GeoLiteUpdaterJob) Run(ctx context.Context) error {
	if j.licenseKey == "" {
		j.logger.Debug("GeoLite license key not configured, skipping update")
		return nil
	}

	lastUpdate := j.lastUpdate(ctx)
	if j.now().Sub(lastUpdate) < GeoLiteUpdateInterval {
		j.logger.Debug("GeoLite database is up to date", slog.Time("last_update", lastUpdate))
		return nil
	}

	j.logger.Info("Starting GeoLite database update", slog.Time("last_update", lastUpdate))
	if err := j.downloadAndUpdate(ctx); err != nil {
		return fmt.Errorf("geolite update: %w", err)
	}
	j.resolver.Reload(j.dbPath)

	if err := j.state().Set(ctx, KeyGeoLiteLastUpdate, j.now().UTC().Format(time.RFC3339)); err != nil {
		j.logger.Error("Failed to record GeoLite update time", slog.Any("error", err))
	}
	j.logger.Info("GeoLite database updated successfully", slog.String("path", j.dbPath))
	return nil
}

func (j *GeoLiteUpdaterJob) lastUpdate(ctx context.Context) time.Time {
	raw, err := j.state().Get(ctx, KeyGeoLiteLastUpdate)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			j.logger.Warn("Failed to read GeoLite update time", slog.Any("error", err))
		}
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (j *GeoLiteUpdaterJob) downloadAndUpdate(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(j.dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	url := j.downloadURL
	if strings.Contains(url, "%s") {
		url = fmt.Sprintf(url, j.licenseKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download GeoLite database: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	// Extract next to the target and rename so readers never see a partial file.
	tmp, err := os.CreateTemp(filepath.Dir(j.dbPath), "geolite-*.mmdb")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := extractMMDB(resp.Body, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to extract database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), j.dbPath)
}

// extractMMDB copies the first .mmdb entry of a tar.gz stream into dst.
func extractMMDB(r io.Reader, dst io.Writer) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read tar: %w", err)
		}
		if strings.HasSuffix(header.Name, ".mmdb") {
			if _, err := io.Copy(dst, tr); err != nil {
				return fmt.Errorf("failed to extract file: %w", err)
			}
			return nil
		}
	}
	return errors.New("no .mmdb file found in archive")
}
