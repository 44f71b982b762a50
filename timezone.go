package gate

import (
	"fmt"
	"sort"
	"time"
)

// tradingZones is the fixed UTC offset, in seconds east of UTC, for every supported
// trading timezone. Offsets are standard time only: there is no daylight-saving
// adjustment, so during DST New York, Chicago, London, Berlin and Sydney are one hour off.
var tradingZones = map[string]int{
	"UTC":              0,               // identity
	"Europe/London":    0,               // GMT
	"Europe/Berlin":    1 * 60 * 60,     // CET
	"America/New_York": -5 * 60 * 60,    // EST
	"America/Chicago":  -6 * 60 * 60,    // CST
	"Asia/Kolkata":     5*60*60 + 30*60, // IST
	"Asia/Singapore":   8 * 60 * 60,     // SGT
	"Asia/Hong_Kong":   8 * 60 * 60,     // HKT
	"Asia/Tokyo":       9 * 60 * 60,     // JST
	"Australia/Sydney": 10 * 60 * 60,    // AEST
}

// LoadTradingZone returns the fixed-offset location for a supported zone name.
func LoadTradingZone(name string) (*time.Location, error) {
	if name == "UTC" {
		return time.UTC, nil
	}

	offset, ok := tradingZones[name]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported timezone %q (supported: %v)", ErrConfiguration, name, SupportedZones())
	}
	return time.FixedZone(name, offset), nil
}

// SupportedZones lists the zone names accepted by LoadTradingZone.
func SupportedZones() []string {
	names := make([]string, 0, len(tradingZones))
	for name := range tradingZones {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToTradingLocal converts t to wall-clock fields in loc. A UTC location returns t in UTC.
func ToTradingLocal(t time.Time, loc *time.Location) time.Time {
	return t.In(loc)
}
