package user_agent

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/mileusna/useragent"
	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

// Device types reported in UserAgent.Device.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceTV      = "tv"
	DeviceBot     = "bot"
)

type UserAgent struct {
	UserAgent      string
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	Device         string
	Mobile         bool
	Tablet         bool
	Desktop        bool
	Bot            bool
}

//go:embed rules.yml
var rulesFile []byte

// BotEntry marks a user agent as automated traffic.
type BotEntry struct {
	Regex string `yaml:"regex"`
	Name  string `yaml:"name"`
}

// BrowserEntry renames the browser, mostly for in-app webviews the generic
// parser reports as plain Chrome or Safari.
type BrowserEntry struct {
	Regex string `yaml:"regex"`
	Name  string `yaml:"name"`
}

// DeviceEntry forces a device type.
type DeviceEntry struct {
	Regex  string `yaml:"regex"`
	Device string `yaml:"device"`
}

type ruleSet struct {
	Bots     []BotEntry     `yaml:"bots"`
	Browsers []BrowserEntry `yaml:"browsers"`
	Devices  []DeviceEntry  `yaml:"devices"`
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

func (rc *RegexCache) matches(pattern, userAgent string) bool {
	regex, err := rc.get(pattern)
	if err != nil {
		return false
	}
	return regex.MatchString(userAgent)
}

var (
	rules      ruleSet
	regexCache = newRegexCache()
	loadOnce   sync.Once
)

func loadRules() {
	loadOnce.Do(func() {
		if err := yaml.Unmarshal(rulesFile, &rules); err != nil {
			fmt.Printf("Error parsing user agent rules: %v\n", err)
		}
	})
}

// Parse extracts browser, OS and device information from a User-Agent header.
func Parse(userAgent string) UserAgent {
	loadRules()

	parsed := useragent.Parse(userAgent)
	result := UserAgent{
		UserAgent:      userAgent,
		Browser:        parsed.Name,
		BrowserVersion: parsed.Version,
		OS:             parsed.OS,
		OSVersion:      parsed.OSVersion,
		Mobile:         parsed.Mobile,
		Tablet:         parsed.Tablet,
		Desktop:        parsed.Desktop,
		Bot:            parsed.Bot,
	}

	for _, bot := range rules.Bots {
		if regexCache.matches(bot.Regex, userAgent) {
			result.Bot = true
			if result.Browser == "" {
				result.Browser = bot.Name
			}
			break
		}
	}

	for _, entry := range rules.Browsers {
		if regexCache.matches(entry.Regex, userAgent) {
			result.Browser = entry.Name
			break
		}
	}

	for _, entry := range rules.Devices {
		if regexCache.matches(entry.Regex, userAgent) {
			result.Mobile = false
			result.Tablet = entry.Device == DeviceTablet
			result.Desktop = false
			result.Device = entry.Device
			break
		}
	}

	if result.Device == "" {
		result.Device = deviceType(result)
	}
	result.OS = normalizeOS(result.OS)

	return result
}

func deviceType(ua UserAgent) string {
	switch {
	case ua.Bot:
		return DeviceBot
	case ua.Tablet:
		return DeviceTablet
	case ua.Mobile:
		return DeviceMobile
	case ua.Desktop:
		return DeviceDesktop
	}

	// Fallback based on user agent patterns
	lower := strings.ToLower(ua.UserAgent)
	if strings.Contains(lower, "mobile") || strings.Contains(lower, "iphone") {
		return DeviceMobile
	}
	return ""
}

// normalizeOS folds common OS spellings into one name.
func normalizeOS(os string) string {
	lower := strings.ToLower(os)
	switch {
	case lower == "":
		return ""
	case strings.Contains(lower, "mac") || strings.Contains(lower, "darwin"):
		return "macOS"
	case strings.Contains(lower, "ios") || strings.Contains(lower, "iphone os"):
		return "iOS"
	case strings.Contains(lower, "android"):
		return "Android"
	case strings.Contains(lower, "windows"):
		return "Windows"
	case strings.Contains(lower, "linux"):
		return "Linux"
	}
	return os
}
