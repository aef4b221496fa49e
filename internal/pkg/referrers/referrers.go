// Package referrers classifies and names referring hosts.
package referrers

import "strings"

// Referrer categories, in classification priority order.
const (
	CategorySearch = "search"
	CategorySocial = "social"
	CategoryEmail  = "email"
)

// Keyword lists matched against the referring hostname. Plain keywords match
// anywhere in the host, dotted ones only as the registered domain. Categories
// are tried in the order search, social, email; the first hit decides.
var (
	searchKeywords = []string{"google", "bing", "yahoo", "duckduckgo", "baidu", "yandex", "ecosia", "kagi", "ask.com"}
	socialKeywords = []string{"facebook", "fb.com", "twitter", "x.com", "t.co", "instagram", "linkedin", "lnkd.in",
		"pinterest", "tiktok", "reddit", "youtube", "youtu.be", "threads.net", "bsky.app", "snapchat"}
	emailKeywords = []string{"mail", "outlook", "proton.me", "newsletter"}
)

// Classify returns the referrer category for a hostname, or "" when the host
// matches none of the keyword lists.
func Classify(hostname string) string {
	host := strings.TrimPrefix(strings.ToLower(hostname), "www.")
	if host == "" {
		return ""
	}
	switch {
	case containsAny(host, searchKeywords):
		return CategorySearch
	case containsAny(host, socialKeywords):
		return CategorySocial
	case containsAny(host, emailKeywords):
		return CategoryEmail
	}
	return ""
}

func containsAny(host string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(kw, ".") {
			if host == kw || strings.HasSuffix(host, "."+kw) {
				return true
			}
			continue
		}
		if strings.Contains(host, kw) {
			return true
		}
	}
	return false
}

// Common referrer hostnames mapped to friendly display names
var knownReferrers = map[string]string{
	"google.com":     "Google",
	"google.co.uk":   "Google",
	"google.de":      "Google",
	"google.fr":      "Google",
	"google.es":      "Google",
	"google.ca":      "Google",
	"bing.com":       "Bing",
	"duckduckgo.com": "DuckDuckGo",
	"yahoo.com":      "Yahoo",
	"baidu.com":      "Baidu",
	"yandex.ru":      "Yandex",
	"ecosia.org":     "Ecosia",

	"x.com":         "X/Twitter",
	"twitter.com":   "X/Twitter",
	"t.co":          "X/Twitter",
	"facebook.com":  "Facebook",
	"instagram.com": "Instagram",
	"linkedin.com":  "LinkedIn",
	"tiktok.com":    "TikTok",
	"pinterest.com": "Pinterest",
	"reddit.com":    "Reddit",
	"youtube.com":   "YouTube",

	"mail.google.com":  "Gmail",
	"outlook.live.com": "Outlook",
	"mail.yahoo.com":   "Yahoo Mail",
	"mail.proton.me":   "Proton Mail",

	// Deal and comparison sites that send storefront traffic
	"slickdeals.net":      "Slickdeals",
	"honey.com":           "Honey",
	"rakuten.com":         "Rakuten",
	"pricegrabber.com":    "PriceGrabber",
	"shopping.google.com": "Google Shopping",
	"retailmenot.com":     "RetailMeNot",
	"camelcamelcamel.com": "camelcamelcamel",
}

// FriendlyName returns a human-friendly name for a referrer hostname.
// If the hostname is not in the known list, it returns the hostname
// with common prefixes like "www." removed and first letter capitalized.
func FriendlyName(hostname string) string {
	hostname = strings.ToLower(hostname)

	// Check exact match first
	if name, ok := knownReferrers[hostname]; ok {
		return name
	}

	// Try without www. prefix
	if strings.HasPrefix(hostname, "www.") {
		withoutWWW := hostname[4:]
		if name, ok := knownReferrers[withoutWWW]; ok {
			return name
		}
		hostname = withoutWWW
	}

	// Check if it's a subdomain of a known referrer
	for domain, name := range knownReferrers {
		if strings.HasSuffix(hostname, "."+domain) {
			return name
		}
	}

	// Capitalize first letter for unknown hostnames
	return capitalizeFirst(hostname)
}

// capitalizeFirst capitalizes the first letter of a string
func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
