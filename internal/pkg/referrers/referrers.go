package referrers

import (
	"net/url"
	"strings"
)

// knownSources maps referrer hostnames to the name shown on the dashboard.
var knownSources = map[string]string{
	// Search
	"google.com":     "Google",
	"google.co.uk":   "Google",
	"google.de":      "Google",
	"google.fr":      "Google",
	"google.com.br":  "Google",
	"bing.com":       "Bing",
	"duckduckgo.com": "DuckDuckGo",
	"yahoo.com":      "Yahoo",
	"baidu.com":      "Baidu",
	"yandex.ru":      "Yandex",
	"ecosia.org":     "Ecosia",
	"kagi.com":       "Kagi",

	// Social
	"x.com":           "X/Twitter",
	"twitter.com":     "X/Twitter",
	"t.co":            "X/Twitter",
	"facebook.com":    "Facebook",
	"l.facebook.com":  "Facebook",
	"instagram.com":   "Instagram",
	"linkedin.com":    "LinkedIn",
	"lnkd.in":         "LinkedIn",
	"reddit.com":      "Reddit",
	"threads.net":     "Threads",
	"bsky.app":        "Bluesky",
	"mastodon.social": "Mastodon",
	"youtube.com":     "YouTube",
	"t.me":            "Telegram",

	// Communities and blogging platforms
	"news.ycombinator.com": "Hacker News",
	"lobste.rs":            "Lobsters",
	"dev.to":               "DEV Community",
	"hashnode.com":         "Hashnode",
	"medium.com":           "Medium",
	"substack.com":         "Substack",
	"github.com":           "GitHub",
	"stackoverflow.com":    "Stack Overflow",
	"juejin.cn":            "Juejin",
	"zhihu.com":            "Zhihu",
	"v2ex.com":             "V2EX",

	// Mail
	"mail.google.com":  "Gmail",
	"outlook.live.com": "Outlook",
}

// FriendlyName returns a display name for a referrer hostname. Unknown hosts
// are returned without "www." and with the first letter capitalized.
func FriendlyName(hostname string) string {
	hostname = strings.ToLower(hostname)

	if name, ok := knownSources[hostname]; ok {
		return name
	}

	if strings.HasPrefix(hostname, "www.") {
		hostname = hostname[4:]
		if name, ok := knownSources[hostname]; ok {
			return name
		}
	}

	for domain, name := range knownSources {
		if strings.HasSuffix(hostname, "."+domain) {
			return name
		}
	}

	if hostname == "" {
		return hostname
	}
	return strings.ToUpper(hostname[:1]) + hostname[1:]
}

// Host extracts the lower-cased hostname from a referrer URL. Values without
// a scheme are treated as bare hosts.
func Host(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Source returns the display name for a referrer URL, e.g. "Google".
func Source(rawURL string) string {
	host := Host(rawURL)
	if host == "" {
		return ""
	}
	return FriendlyName(host)
}
