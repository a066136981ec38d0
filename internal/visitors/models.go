package visitors

import "time"

// Visitor is the durable identity behind a client-supplied token.
type Visitor struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	Token          string    `gorm:"uniqueIndex;not null" json:"visitorId"`
	IPAddress      string    `json:"ip"`
	Country        string    `gorm:"index" json:"country"`
	Region         string    `json:"region"`
	City           string    `json:"city"`
	Browser        string    `gorm:"index" json:"browser"`
	BrowserVersion string    `json:"browserVersion"`
	OS             string    `json:"os"`
	OSVersion      string    `json:"osVersion"`
	Device         string    `gorm:"index" json:"device"`
	ScreenWidth    int       `json:"screenWidth"`
	ScreenHeight   int       `json:"screenHeight"`
	Language       string    `json:"language"`
	Timezone       string    `json:"timezone"`
	FirstSeenAt    time.Time `gorm:"not null" json:"firstSeenAt"`
	LastSeenAt     time.Time `gorm:"index;not null" json:"lastSeenAt"`
	VisitCount     int       `gorm:"not null;default:0" json:"visitCount"`
}

// Attributes are the device and geo fields an event may carry about its visitor.
// Zero values mean "not reported".
type Attributes struct {
	IPAddress      string
	Country        string
	Region         string
	City           string
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	Device         string
	ScreenWidth    int
	ScreenHeight   int
	Language       string
	Timezone       string
}

// columns returns the non-empty attributes keyed by column name.
func (a Attributes) columns() map[string]interface{} {
	cols := make(map[string]interface{})
	set := func(name, value string) {
		if value != "" {
			cols[name] = value
		}
	}
	set("ip_address", a.IPAddress)
	set("country", a.Country)
	set("region", a.Region)
	set("city", a.City)
	set("browser", a.Browser)
	set("browser_version", a.BrowserVersion)
	set("os", a.OS)
	set("os_version", a.OSVersion)
	set("device", a.Device)
	set("language", a.Language)
	set("timezone", a.Timezone)
	if a.ScreenWidth > 0 {
		cols["screen_width"] = a.ScreenWidth
	}
	if a.ScreenHeight > 0 {
		cols["screen_height"] = a.ScreenHeight
	}
	return cols
}

func (a Attributes) applyTo(v *Visitor) {
	v.IPAddress = a.IPAddress
	v.Country = a.Country
	v.Region = a.Region
	v.City = a.City
	v.Browser = a.Browser
	v.BrowserVersion = a.BrowserVersion
	v.OS = a.OS
	v.OSVersion = a.OSVersion
	v.Device = a.Device
	v.ScreenWidth = a.ScreenWidth
	v.ScreenHeight = a.ScreenHeight
	v.Language = a.Language
	v.Timezone = a.Timezone
}
