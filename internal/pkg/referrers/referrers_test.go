package referrers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFriendlyName(t *testing.T) {
	tests := []struct {
		hostname string
		expected string
	}{
		{"google.com", "Google"},
		{"x.com", "X/Twitter"},
		{"reddit.com", "Reddit"},
		{"www.google.com", "Google"},
		{"m.facebook.com", "Facebook"},
		{"slickdeals.net", "Slickdeals"},
		{"shopping.google.com", "Google Shopping"},
		{"example.com", "Example.com"},
		{"www.example.com", "Example.com"},
		{"GOOGLE.COM", "Google"},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			assert.Equal(t, tt.expected, FriendlyName(tt.hostname))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		hostname string
		expected string
	}{
		{"www.google.com", CategorySearch},
		{"duckduckgo.com", CategorySearch},
		{"l.facebook.com", CategorySocial},
		{"t.co", CategorySocial},
		{"www.instagram.com", CategorySocial},
		{"outlook.live.com", CategoryEmail},
		{"mail.proton.me", CategoryEmail},
		// search keywords take priority over email ones
		{"mail.google.com", CategorySearch},
		{"blog.example.org", ""},
		{"target.com", ""},
		{"inbox.com", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.hostname))
		})
	}
}
