// Package geoip resolves shopper IPs to countries for the traffic breakdown.
// The GeoLite2 database is optional; without it every lookup is Unknown.
package geoip

import (
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"shopsphere/internal/config"
)

// Unknown is stored when an IP cannot be resolved.
const Unknown = "unknown"

var (
	resolver *Resolver
	once     sync.Once
	names    = gountries.New()
)

// Resolver wraps an optional GeoLite2 country database.
type Resolver struct {
	mu     sync.RWMutex
	db     *geoip2.Reader
	logger *slog.Logger
}

// Open loads the database at path. A missing or unreadable file yields a
// Resolver that answers Unknown.
func Open(path string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{logger: logger}
	r.db = r.open(path)
	return r
}

func (r *Resolver) open(path string) *geoip2.Reader {
	if path == "" {
		r.logger.Debug("GeoIP database path not configured - country lookups disabled")
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			r.logger.Info("GeoLite2 database not found - country lookups disabled",
				slog.String("path", path),
				slog.String("hint", "Download from https://www.maxmind.com/en/geolite2/signup"))
		} else {
			r.logger.Warn("Error checking GeoLite2 database file",
				slog.String("path", path),
				slog.Any("error", err))
		}
		return nil
	}

	db, err := geoip2.Open(path)
	if err != nil {
		r.logger.Error("Failed to open GeoLite2 database",
			slog.String("path", path),
			slog.Any("error", err))
		return nil
	}
	r.logger.Info("GeoLite2 database initialized", slog.String("path", path))
	return db
}

// Default returns the process-wide resolver built from config.
func Default() *Resolver {
	once.Do(func() {
		resolver = Open(config.GetConfig().GeoDBPath, slog.Default())
	})
	return resolver
}

// Country returns the lowercase ISO code for ip, or Unknown.
func (r *Resolver) Country(ipAddress string) string {
	if r == nil {
		return Unknown
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.db == nil {
		return Unknown
	}

	ip := net.ParseIP(ipAddress)
	if ip == nil {
		return Unknown
	}
	record, err := r.db.Country(ip)
	if err != nil {
		r.logger.Debug("Country lookup failed",
			slog.String("ip_address", ipAddress),
			slog.Any("error", err))
		return Unknown
	}
	code := record.Country.IsoCode
	if code == "" || code == "--" {
		return Unknown
	}
	return strings.ToLower(code)
}

// Reload reopens the database from path, e.g. after a download.
func (r *Resolver) Reload(path string) {
	db := r.open(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db != nil {
		r.db.Close()
	}
	r.db = db
}

func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// CountryName turns a stored ISO code into a display name.
func CountryName(code string) string {
	if code == "" || code == Unknown {
		return "Unknown"
	}
	country, err := names.FindCountryByAlpha(code)
	if err != nil {
		return cases.Upper(language.AmericanEnglish).String(code)
	}
	return country.Name.Common
}
