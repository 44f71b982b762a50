package gate

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var timeOfDayPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// TimeOfDay is a wall-clock minute in trading-local time.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses a strict HH:MM value.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	m := timeOfDayPattern.FindStringSubmatch(s)
	if m == nil {
		return TimeOfDay{}, &TimeFormatError{Value: s}
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// BoundaryKind says whether the next window edge opens or closes trading.
type BoundaryKind string

const (
	BoundaryOpen  BoundaryKind = "open"
	BoundaryClose BoundaryKind = "close"
)

// Boundary is the next window edge.
type Boundary struct {
	Kind BoundaryKind
	At   time.Time
}

// TradingWindow answers whether an instant falls inside the daily trading window.
// Both bounds are inclusive. A start later than the end means the window crosses midnight.
type TradingWindow struct {
	start TimeOfDay
	end   TimeOfDay
	zone  string
	loc   *time.Location
}

// NewTradingWindow builds a window from HH:MM bounds and a supported zone name.
func NewTradingWindow(start, end, zone string) (*TradingWindow, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return nil, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return nil, err
	}
	loc, err := LoadTradingZone(zone)
	if err != nil {
		return nil, err
	}

	return &TradingWindow{
		start: s,
		end:   e,
		zone:  zone,
		loc:   loc,
	}, nil
}

// crossesMidnight reports whether the window wraps past 00:00.
func (w *TradingWindow) crossesMidnight() bool {
	return w.start.Minutes() > w.end.Minutes()
}

// IsWithinWindow reports whether now is inside the window.
func (w *TradingWindow) IsWithinWindow(now time.Time) bool {
	local := ToTradingLocal(now, w.loc)
	t := local.Hour()*60 + local.Minute()

	if w.crossesMidnight() {
		return t >= w.start.Minutes() || t <= w.end.Minutes()
	}
	return t >= w.start.Minutes() && t <= w.end.Minutes()
}

// NextBoundary returns the next close while inside the window and the next open otherwise.
// The end minute is inclusive, so the close instant is the first minute after it.
func (w *TradingWindow) NextBoundary(now time.Time) Boundary {
	local := ToTradingLocal(now, w.loc)
	y, m, d := local.Date()

	if w.IsWithinWindow(now) {
		closeAt := time.Date(y, m, d, w.end.Hour, w.end.Minute+1, 0, 0, w.loc)
		t := local.Hour()*60 + local.Minute()
		if w.crossesMidnight() && t >= w.start.Minutes() {
			closeAt = closeAt.AddDate(0, 0, 1)
		}
		return Boundary{Kind: BoundaryClose, At: closeAt}
	}

	openAt := time.Date(y, m, d, w.start.Hour, w.start.Minute, 0, 0, w.loc)
	if !openAt.After(local) {
		openAt = openAt.AddDate(0, 0, 1)
	}
	return Boundary{Kind: BoundaryOpen, At: openAt}
}

// Location returns the fixed-offset trading location.
func (w *TradingWindow) Location() *time.Location {
	return w.loc
}

func (w *TradingWindow) String() string {
	return fmt.Sprintf("%s-%s %s", w.start, w.end, w.zone)
}
