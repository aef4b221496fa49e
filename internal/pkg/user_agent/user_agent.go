package user_agent

import (
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

// Device classes reported by DeviceType.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
)

// Unknown is reported for browser name and version when no signature matches.
const Unknown = "Unknown"

type UserAgent struct {
	UserAgent      string
	Browser        string
	BrowserVersion string
	Device         string
	Mobile         bool
	Tablet         bool
	Desktop        bool
}

//go:embed database/browsers.yml
//go:embed database/devices.yml
var databaseFiles embed.FS

// Browser entry structure
type BrowserEntry struct {
	Regex   string `yaml:"regex"`
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// Device entry structure
type DeviceEntry struct {
	Regex  string `yaml:"regex"`
	Device string `yaml:"device"`
}

// Compiled regex cache
type RegexCache struct {
	compiled map[string]*pcre.Regexp
	mutex    sync.RWMutex
}

func newRegexCache() *RegexCache {
	return &RegexCache{
		compiled: make(map[string]*pcre.Regexp),
	}
}

func (rc *RegexCache) get(pattern string) (*pcre.Regexp, error) {
	rc.mutex.RLock()
	if regex, exists := rc.compiled[pattern]; exists {
		rc.mutex.RUnlock()
		return regex, nil
	}
	rc.mutex.RUnlock()

	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	// Double-check pattern
	if regex, exists := rc.compiled[pattern]; exists {
		return regex, nil
	}

	regex, err := pcre.Compile(pattern)
	if err != nil {
		return nil, err
	}
	rc.compiled[pattern] = regex
	return regex, nil
}

var (
	parser *signatureParser
	once   sync.Once
)

type signatureParser struct {
	browsers   []BrowserEntry
	devices    []DeviceEntry
	regexCache *RegexCache
}

func loadEntries[T any](file string, into *[]T) {
	data, err := databaseFiles.ReadFile(file)
	if err != nil {
		slog.Default().Error("user agent database missing", slog.String("file", file), slog.Any("error", err))
		return
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		slog.Default().Error("user agent database invalid", slog.String("file", file), slog.Any("error", err))
	}
}

func getParser() *signatureParser {
	once.Do(func() {
		parser = &signatureParser{regexCache: newRegexCache()}
		loadEntries("database/browsers.yml", &parser.browsers)
		loadEntries("database/devices.yml", &parser.devices)
	})
	return parser
}

func expandPlaceholders(template string, matches []string) string {
	out := template
	for i, match := range matches[1:] {
		out = strings.ReplaceAll(out, fmt.Sprintf("$%d", i+1), match)
	}
	return out
}

func (p *signatureParser) parseBrowser(userAgent string) (string, string) {
	for _, entry := range p.browsers {
		regex, err := p.regexCache.get(entry.Regex)
		if err != nil {
			continue
		}
		matches := regex.FindStringSubmatch(userAgent)
		if len(matches) == 0 {
			continue
		}
		version := Unknown
		if entry.Version != "" && len(matches) > 1 {
			version = expandPlaceholders(entry.Version, matches)
		}
		return entry.Name, version
	}
	return Unknown, Unknown
}

func (p *signatureParser) parseDevice(userAgent string) string {
	for _, entry := range p.devices {
		regex, err := p.regexCache.get(entry.Regex)
		if err != nil {
			continue
		}
		if regex.MatchString(userAgent) {
			return entry.Device
		}
	}

	// Substring fallback if the embedded patterns failed to compile.
	ua := strings.ToLower(userAgent)
	if strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad") {
		return DeviceTablet
	}
	if strings.Contains(ua, "mobile") || strings.Contains(ua, "iphone") || strings.Contains(ua, "android") {
		return DeviceMobile
	}
	return DeviceDesktop
}

// DeviceType classifies a user agent as desktop, mobile or tablet. Tablet
// signatures are checked before mobile ones.
func DeviceType(userAgent string) string {
	if userAgent == "" {
		return DeviceDesktop
	}
	return getParser().parseDevice(userAgent)
}

// BrowserInfo returns the first matching browser signature, or Unknown/Unknown.
func BrowserInfo(userAgent string) (name, version string) {
	if userAgent == "" {
		return Unknown, Unknown
	}
	return getParser().parseBrowser(userAgent)
}

func ParseUserAgent(userAgent string) UserAgent {
	device := DeviceType(userAgent)
	browser, version := BrowserInfo(userAgent)

	return UserAgent{
		UserAgent:      userAgent,
		Browser:        browser,
		BrowserVersion: version,
		Device:         device,
		Mobile:         device == DeviceMobile,
		Tablet:         device == DeviceTablet,
		Desktop:        device == DeviceDesktop,
	}
}
