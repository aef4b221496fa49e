package environment

import (
	"net/url"
	"strings"

	"shopsphere/internal/pkg/referrers"
)

// Traffic sources.
const (
	SourcePaid     = "paid"
	SourceDirect   = "direct"
	SourceSearch   = "search"
	SourceSocial   = "social"
	SourceEmail    = "email"
	SourceReferral = "referral"
)

// CampaignData holds the five UTM fields. Absent fields marshal as null.
type CampaignData struct {
	Source   *string `json:"source"`
	Medium   *string `json:"medium"`
	Campaign *string `json:"campaign"`
	Term     *string `json:"term"`
	Content  *string `json:"content"`
}

// Attribution is the traffic classification of a page load.
type Attribution struct {
	Source   string        `json:"source"`
	Campaign *CampaignData `json:"campaignData,omitempty"`
}

// TrafficSource attributes a visit. A utm_source on the page URL makes it paid
// traffic; otherwise the referrer host decides, and anything unparseable is
// treated as direct.
func TrafficSource(pageURL, referrer string) Attribution {
	if pageURL != "" {
		u, err := url.Parse(pageURL)
		if err != nil {
			return Attribution{Source: SourceDirect}
		}
		q := u.Query()
		if q.Get("utm_source") != "" {
			return Attribution{Source: SourcePaid, Campaign: campaignFromQuery(q)}
		}
	}

	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return Attribution{Source: SourceDirect}
	}

	host := Hostname(referrer)
	if host == "" {
		return Attribution{Source: SourceDirect}
	}

	switch referrers.Classify(host) {
	case referrers.CategorySearch:
		return Attribution{Source: SourceSearch}
	case referrers.CategorySocial:
		return Attribution{Source: SourceSocial}
	case referrers.CategoryEmail:
		return Attribution{Source: SourceEmail}
	}
	return Attribution{Source: SourceReferral}
}

func campaignFromQuery(q url.Values) *CampaignData {
	field := func(key string) *string {
		if !q.Has(key) {
			return nil
		}
		v := q.Get(key)
		return &v
	}
	return &CampaignData{
		Source:   field("utm_source"),
		Medium:   field("utm_medium"),
		Campaign: field("utm_campaign"),
		Term:     field("utm_term"),
		Content:  field("utm_content"),
	}
}

// Hostname extracts the lower-cased host of a URL. Bare hosts such as
// "google.com/search" are accepted.
func Hostname(referrer string) string {
	u, err := url.Parse(referrer)
	if err != nil {
		return ""
	}
	if u.Host == "" && !strings.Contains(referrer, "://") {
		u, err = url.Parse("//" + referrer)
		if err != nil {
			return ""
		}
	}
	return strings.ToLower(u.Hostname())
}
