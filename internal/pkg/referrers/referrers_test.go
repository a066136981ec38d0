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
		{"news.ycombinator.com", "Hacker News"},
		{"www.reddit.com", "Reddit"},
		{"m.facebook.com", "Facebook"},
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

func TestSource(t *testing.T) {
	tests := []struct {
		raw      string
		host     string
		expected string
	}{
		{"https://www.google.com/search?q=go", "www.google.com", "Google"},
		{"https://t.co/abc", "t.co", "X/Twitter"},
		{"myblog.io/post/1", "myblog.io", "Myblog.io"},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.host, Host(tt.raw))
			assert.Equal(t, tt.expected, Source(tt.raw))
		})
	}
}
