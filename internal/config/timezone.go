package config

import "time"

// Timezone describes a clock card's zone.
type Timezone struct {
	Name           string // display name, e.g. "Seoul"
	Location       string // IANA name for time.LoadLocation
	UTCOffsetHours int    // fallback offset when the zone database is missing
}

var timezones = map[string]Timezone{
	"Seoul":       {Name: "Seoul", Location: "Asia/Seoul", UTCOffsetHours: 9},
	"New York":    {Name: "New York", Location: "America/New_York", UTCOffsetHours: -5},
	"London":      {Name: "London", Location: "Europe/London", UTCOffsetHours: 0},
	"Tokyo":       {Name: "Tokyo", Location: "Asia/Tokyo", UTCOffsetHours: 9},
	"Los Angeles": {Name: "Los Angeles", Location: "America/Los_Angeles", UTCOffsetHours: -8},
	"Sydney":      {Name: "Sydney", Location: "Australia/Sydney", UTCOffsetHours: 10},
}

// TimezoneFor resolves a card's config string. Unknown or empty names fall
// back to Seoul.
func TimezoneFor(name string) Timezone {
	if tz, ok := timezones[name]; ok {
		return tz
	}
	return timezones["Seoul"]
}

// LookupTimezone is TimezoneFor without the fallback.
func LookupTimezone(name string) (Timezone, bool) {
	tz, ok := timezones[name]
	return tz, ok
}

// Load returns the zone's location, falling back to a fixed offset when the
// zone database is not available.
func (tz Timezone) Load() *time.Location {
	if tz.Location != "" {
		if loc, err := time.LoadLocation(tz.Location); err == nil {
			return loc
		}
	}
	return time.FixedZone(tz.Name, tz.UTCOffsetHours*3600)
}
