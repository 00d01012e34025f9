package timezone

import (
	"errors"
	"fmt"
	"time"
)

// WallClockLayout is the format scheduling requests carry local times in.
const WallClockLayout = "2006-01-02T15:04"

var ErrInvalidTimezone = errors.New("invalid timezone")

// ParseWallClock converts a user-local wall-clock value in the given IANA
// zone to a UTC instant. Wall times falling in a daylight-saving gap are
// normalized forward to the instant the zone database resolves them to.
func ParseWallClock(value, zone string) (time.Time, error) {
	loc, err := loadZone(zone)
	if err != nil {
		return time.Time{}, err
	}

	local, err := time.ParseInLocation(WallClockLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid scheduled time format: %w", err)
	}

	return local.UTC(), nil
}

// InZone converts an absolute instant back to the user's zone for display.
func InZone(t time.Time, zone string) (time.Time, error) {
	loc, err := loadZone(zone)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

// FormatLocal renders an instant as a wall-clock string in the given zone.
func FormatLocal(t time.Time, zone string) (string, error) {
	local, err := InZone(t, zone)
	if err != nil {
		return "", err
	}
	return local.Format(WallClockLayout), nil
}

func loadZone(zone string) (*time.Location, error) {
	if zone == "" {
		return nil, fmt.Errorf("%w: empty zone identifier", ErrInvalidTimezone)
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, zone)
	}
	return loc, nil
}
